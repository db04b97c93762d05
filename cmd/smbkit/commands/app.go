package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/cli/output"
	"github.com/marmos91/smbkit/internal/cli/prompt"
	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/internal/telemetry"
	"github.com/marmos91/smbkit/pkg/config"
	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/smbfs"
	"github.com/marmos91/smbkit/pkg/smbpath"
	"github.com/marmos91/smbkit/pkg/transport"
	"github.com/marmos91/smbkit/pkg/transport/memory"
	"github.com/marmos91/smbkit/pkg/transport/smb2"
)

// newDryRunServer builds the in-memory server used by --dry-run. Tests
// replace it to seed content.
var newDryRunServer = memory.NewServer

// promptPassword asks for the password of --user. Tests replace it.
var promptPassword = prompt.CredentialPassword

// app is the per-invocation state shared by the file commands.
type app struct {
	cfg     *config.Config
	fs      *smbfs.FileSystem
	scope   session.Scope
	printer *output.Printer
	closers []func(context.Context)
}

// loadConfig loads the configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(flags.logLevel)
		if _, ok := logger.ParseLevel(cfg.Logging.Level); !ok {
			return nil, fmt.Errorf("invalid --log-level %q", flags.logLevel)
		}
	}
	return cfg, nil
}

// newPrinter returns a printer for the --output format.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(flags.output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format), nil
}

// newApp prepares logging, tracing, metrics, credentials and the file
// system for a command operating on remote. The caller must close it.
func newApp(cmd *cobra.Command, remote string) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	printer, err := newPrinter(cmd)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, scope: session.NewScope(), printer: printer}
	if err := a.setup(ctx, remote); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) setup(ctx context.Context, remote string) error {
	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.onClose(func(ctx context.Context) {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown error", logger.Err(err))
		}
	})

	reg := credential.NewRegistry()
	opts, err := a.cfg.FileSystemOptions(reg)
	if err != nil {
		return err
	}
	if err := a.registerFlagCredential(reg, remote); err != nil {
		return err
	}

	if addr := a.metricsAddr(); addr != "" {
		promReg := prometheus.NewRegistry()
		stop, err := serveMetrics(addr, promReg)
		if err != nil {
			return err
		}
		a.onClose(stop)
		opts = append(opts, smbfs.WithMetrics(promReg))
	}

	var factory transport.Factory = smb2.Factory{DialTimeout: a.cfg.Client.SessionTimeout}
	if flags.dryRun {
		srv := newDryRunServer()
		seedDryRun(srv, reg, remote)
		factory = srv.Factory()
		opts = append(opts, smbfs.WithResolver(smbpath.NewResolverFunc(loopback)))
		logger.Info("dry run: using in-memory server")
	}

	a.fs = smbfs.New(factory, opts...)
	return nil
}

// registerFlagCredential registers --user for the share of remote until
// the app is closed.
func (a *app) registerFlagCredential(reg *credential.Registry, remote string) error {
	if flags.user == "" {
		if flags.password != "" || flags.domain != "" {
			return errors.New("--password and --domain require --user")
		}
		return nil
	}

	root, err := smbpath.ShareRoot(remote)
	if err != nil {
		return err
	}

	password := flags.password
	if password == "" {
		principal := flags.user
		if flags.domain != "" {
			principal = flags.domain + `\` + flags.user
		}
		password, err = promptPassword(principal, root)
		if err != nil {
			return err
		}
	}

	guard, err := reg.Register(flags.domain, flags.user, password, root)
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) { guard.Release() })
	return nil
}

func (a *app) metricsAddr() string {
	if flags.metricsAddr != "" {
		return flags.metricsAddr
	}
	if a.cfg.Metrics.Enabled {
		return fmt.Sprintf(":%d", a.cfg.Metrics.Port)
	}
	return ""
}

func (a *app) onClose(fn func(context.Context)) {
	a.closers = append(a.closers, fn)
}

// close runs the deferred cleanups in reverse order.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

// runRemote builds an app for remote, runs fn and closes the app.
func runRemote(cmd *cobra.Command, remote string, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, remote)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())
	return fn(cmd.Context(), a)
}

// serveMetrics exposes reg on addr under /metrics and returns a stop func.
func serveMetrics(addr string, reg *prometheus.Registry) (func(context.Context), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", logger.Err(err))
		}
	}()
	logger.Info("metrics endpoint listening", logger.Address(ln.Addr().String()))

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Debug("metrics server shutdown", logger.Err(err))
		}
	}, nil
}

// seedDryRun makes srv accept every registered credential and serve their
// shares and the share of remote.
func seedDryRun(srv *memory.Server, reg *credential.Registry, remote string) {
	for _, c := range reg.List() {
		srv.AddUser(c.Domain, c.Username, c.Password)
		if c.Share != "" {
			srv.AddShare(c.Share)
		}
	}
	if addr, err := smbpath.ParseShare(remote); err == nil {
		srv.AddShare(addr.Share)
	}
}

func loopback(context.Context, string, string) ([]netip.Addr, error) {
	return []netip.Addr{netip.AddrFrom4([4]byte{127, 0, 0, 1})}, nil
}

// openLocal opens p for reading, treating "-" as the command's stdin.
func openLocal(cmd *cobra.Command, p string) (io.Reader, func(), error) {
	if p == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
