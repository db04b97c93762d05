package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var existsQuiet bool

var existsCmd = &cobra.Command{
	Use:   "exists <path>",
	Short: "Test whether a remote path exists",
	Long: `Test whether a remote path exists.

Exits 0 when the path exists and 1 when the server confirms it does not.
Access, connectivity and credential failures exit 2: they do not prove
the path is absent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			ok, err := a.fs.Exists(ctx, a.scope, args[0])
			if err != nil {
				return err
			}
			if !existsQuiet {
				if err := a.printer.Print(existsResult{Path: args[0], Exists: ok}); err != nil {
					return err
				}
			}
			if !ok {
				return &exitError{code: 1}
			}
			return nil
		})
	},
}

func init() {
	existsCmd.Flags().BoolVarP(&existsQuiet, "quiet", "q", false, "print nothing, only set the exit status")
}

type existsResult struct {
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
}

func (r existsResult) String() string { return strconv.FormatBool(r.Exists) }
