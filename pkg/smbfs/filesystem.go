// Package smbfs is the surface file and directory wrappers build on.
//
// A FileSystem ties the path resolver, the credential registry, the session
// pool and the retry executor together. Collaborators program against the
// Share capability interface; the FileSystem adds handle-scoped helpers
// (Exists, Stat, Remove, ReadDir, Mkdir) on top of it.
//
// Every operation except OpenStream takes an explicit session.Scope. Calls
// sharing a scope share pooled sessions; a stream always gets its own
// exclusive session so it can outlive the scope that opened it.
package smbfs

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/retry"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/smbpath"
	"github.com/marmos91/smbkit/pkg/stream"
	"github.com/marmos91/smbkit/pkg/transport"
	"github.com/marmos91/smbkit/pkg/transport/smb2"
)

// Share is the capability interface exposed to file and directory wrappers.
// It replaces reaching into a concrete implementation.
type Share interface {
	// ResolvePath parses path and requires it to name a share.
	ResolvePath(path string) (smbpath.Address, error)

	// ResolveCredential returns the credential registered for addr. No match
	// is an InvalidCredential error, never an ambient identity.
	ResolveCredential(addr smbpath.Address) (*credential.Credential, error)

	// AcquireSession returns a pooled session for addr in scope. Pair every
	// successful call with ReleaseSession.
	AcquireSession(ctx context.Context, scope session.Scope, addr smbpath.Address) (*session.Session, error)
	ReleaseSession(ctx context.Context, s *session.Session)

	// ExecuteWithRetry runs fn under the pending poll of the session timeout.
	ExecuteWithRetry(ctx context.Context, op, path string, fn func(ctx context.Context) error) error

	ClassifyStatus(status ntstatus.Status) ntstatus.Kind
	IsConfirmedAbsent(err error) bool

	// OpenStream opens path with os.OpenFile style flags on a new exclusive
	// session owned by the returned stream.
	OpenStream(ctx context.Context, path string, flag int) (*stream.Stream, error)
}

var _ Share = (*FileSystem)(nil)

// FileSystem implements Share. It is safe for concurrent use.
type FileSystem struct {
	registry *credential.Registry
	resolver *smbpath.Resolver
	sessions *session.Manager
	exec     *retry.Executor
	opts     session.Options
}

type config struct {
	registry *credential.Registry
	resolver *smbpath.Resolver
	opts     session.Options
	policy   retry.Policy
	reg      prometheus.Registerer
}

// Option configures a FileSystem.
type Option func(*config)

// WithRegistry resolves credentials from r instead of credential.Default().
func WithRegistry(r *credential.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithResolver resolves host names with r.
func WithResolver(r *smbpath.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

// WithSessionOptions sets how sessions are established.
func WithSessionOptions(o session.Options) Option {
	return func(c *config) { c.opts = o }
}

// WithRetryPolicy sets the pending poll policy. A zero Timeout uses the
// session timeout.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithMetrics registers session and retry metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.reg = reg }
}

// New returns a FileSystem whose sessions are created by factory.
func New(factory transport.Factory, opts ...Option) *FileSystem {
	cfg := config{opts: session.DefaultOptions()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = credential.Default()
	}
	if cfg.resolver == nil {
		cfg.resolver = smbpath.NewResolver(nil)
	}
	if cfg.policy.Timeout <= 0 {
		cfg.policy.Timeout = cfg.opts.SessionTimeout
	}

	var (
		sessionMetrics *session.Metrics
		retryMetrics   *retry.Metrics
	)
	if cfg.reg != nil {
		sessionMetrics = session.NewMetrics(cfg.reg)
		retryMetrics = retry.NewMetrics(cfg.reg)
	}

	return &FileSystem{
		registry: cfg.registry,
		resolver: cfg.resolver,
		sessions: session.NewManager(factory, cfg.resolver, sessionMetrics),
		exec:     retry.New(cfg.policy, retryMetrics),
		opts:     cfg.opts,
	}
}

var (
	defaultOnce sync.Once
	defaultFS   *FileSystem
)

// Default returns the process-wide FileSystem backed by go-smb2 and
// credential.Default(), creating it on first use.
func Default() *FileSystem {
	defaultOnce.Do(func() {
		defaultFS = New(smb2.Factory{})
	})
	return defaultFS
}

// Registry returns the credential registry in use.
func (f *FileSystem) Registry() *credential.Registry { return f.registry }

// Sessions returns the session pool.
func (f *FileSystem) Sessions() *session.Manager { return f.sessions }

// Executor returns the retry executor.
func (f *FileSystem) Executor() *retry.Executor { return f.exec }

func (f *FileSystem) ResolvePath(path string) (smbpath.Address, error) {
	return smbpath.ParseShare(path)
}

func (f *FileSystem) ResolveCredential(addr smbpath.Address) (*credential.Credential, error) {
	cred, ok := f.registry.ResolveAddress(addr)
	if !ok {
		return nil, errors.NewInvalidCredentialError(addr.String(), "no credential registered for path")
	}
	return cred, nil
}

func (f *FileSystem) AcquireSession(ctx context.Context, scope session.Scope, addr smbpath.Address) (*session.Session, error) {
	cred, err := f.ResolveCredential(addr)
	if err != nil {
		return nil, err
	}
	return f.sessions.AcquireShared(ctx, scope, addr, cred, f.opts)
}

func (f *FileSystem) ReleaseSession(ctx context.Context, s *session.Session) {
	f.sessions.Release(ctx, s)
}

func (f *FileSystem) ExecuteWithRetry(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	return f.exec.Do(ctx, op, path, fn)
}

func (f *FileSystem) ClassifyStatus(status ntstatus.Status) ntstatus.Kind {
	return ntstatus.Classify(status)
}

func (f *FileSystem) IsConfirmedAbsent(err error) bool {
	return errors.IsConfirmedAbsent(err)
}

// OpenStream opens the file at path. flag combines one of os.O_RDONLY,
// os.O_WRONLY or os.O_RDWR with os.O_CREATE, os.O_EXCL, os.O_TRUNC and
// os.O_APPEND; an appending stream starts positioned at the end.
func (f *FileSystem) OpenStream(ctx context.Context, path string, flag int) (*stream.Stream, error) {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if addr.IsShareRoot() {
		return nil, errors.NewPathInvalidError(path, "cannot open a share root as a file")
	}
	cred, err := f.ResolveCredential(addr)
	if err != nil {
		return nil, err
	}

	ctx = withLogContext(ctx, "open", addr, session.Unpooled)
	sess, err := f.sessions.AcquireExclusive(ctx, addr, cred, f.opts)
	if err != nil {
		return nil, err
	}

	s, err := stream.Open(ctx, sess, f.exec, addr.Share, addr.Relative, path, createRequest(flag))
	if err != nil {
		return nil, err
	}
	if flag&os.O_APPEND != 0 {
		if _, err := s.Seek(0, io.SeekEnd); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	logger.DebugCtx(ctx, "stream opened", logger.Path(path), logger.Size(s.Length()), logger.ChunkSize(s.ChunkSize()))
	return s, nil
}

// Open opens path for reading.
func (f *FileSystem) Open(ctx context.Context, path string) (*stream.Stream, error) {
	return f.OpenStream(ctx, path, os.O_RDONLY)
}

// Create creates or truncates path and opens it for reading and writing.
func (f *FileSystem) Create(ctx context.Context, path string) (*stream.Stream, error) {
	return f.OpenStream(ctx, path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
}

// createRequest maps os.OpenFile flags to an SMB2 CREATE.
func createRequest(flag int) transport.CreateRequest {
	var req transport.CreateRequest
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_WRONLY:
		req.Access = transport.AccessWrite
	case os.O_RDWR:
		req.Access = transport.AccessReadWrite
	default:
		req.Access = transport.AccessRead
	}

	create := flag&os.O_CREATE != 0
	trunc := flag&os.O_TRUNC != 0
	switch {
	case create && flag&os.O_EXCL != 0:
		req.Disposition = transport.FileCreate
	case create && trunc:
		req.Disposition = transport.FileOverwriteIf
	case create:
		req.Disposition = transport.FileOpenIf
	case trunc:
		req.Disposition = transport.FileOverwrite
	default:
		req.Disposition = transport.FileOpen
	}
	return req
}

func withLogContext(ctx context.Context, op string, addr smbpath.Address, scope session.Scope) context.Context {
	lc := logger.NewLogContext(op).WithTarget(addr.Host, addr.Share).WithScope(scope.String())
	if parent := logger.FromContext(ctx); parent != nil {
		lc.TraceID, lc.SpanID = parent.TraceID, parent.SpanID
	}
	return logger.WithContext(ctx, lc)
}
