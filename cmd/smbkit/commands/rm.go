package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/cli/prompt"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:     "rm <path>",
	Aliases: []string{"remove"},
	Short:   "Remove a remote file or empty directory",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove %s?", args[0]), rmForce)
		if err != nil {
			if prompt.IsAborted(err) {
				return &exitError{code: 1}
			}
			return err
		}
		if !ok {
			return &exitError{code: 1}
		}

		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			if err := a.fs.Remove(ctx, a.scope, args[0]); err != nil {
				return err
			}
			a.printer.Infof("removed %s", args[0])
			return nil
		})
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "do not ask for confirmation")
}
