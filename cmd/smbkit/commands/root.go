// Package commands implements the smbkit command-line client.
package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	flags globalFlags
)

type globalFlags struct {
	configFile  string
	logLevel    string
	output      string
	user        string
	password    string
	domain      string
	metricsAddr string
	dryRun      bool
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "smbkit",
	Short: "smbkit - SMB2/3 file access client",
	Long: `smbkit reads, writes and inspects files on SMB2/3 shares.

Paths use UNC (\\host\share\dir\file) or URI (smb://host:port/share/dir/file)
syntax. Credentials come from the configuration file or from --user,
--password and --domain; a missing password is prompted for.

Use "smbkit [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/smbkit/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override (DEBUG|INFO|WARN|ERROR)")
	pf.StringVarP(&flags.output, "output", "o", "text", "output format (text|json|yaml)")
	pf.StringVarP(&flags.user, "user", "u", "", `user name, optionally DOMAIN\user`)
	pf.StringVarP(&flags.password, "password", "p", "", "password (prompted for when --user is set without it)")
	pf.StringVarP(&flags.domain, "domain", "d", "", "domain of --user")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "use an in-memory server that accepts the configured credentials")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// exitError carries an exit status without a message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status" }

// IsSilent reports whether err only carries an exit status.
func IsSilent(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

// ExitCode maps err to the process exit status: 0 on success, 1 for a
// negative answer such as a missing path, 2 for every failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if smberrors.IsCancelledError(err) {
		return 130
	}
	return 2
}
