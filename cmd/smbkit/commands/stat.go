package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the attributes of a remote file or directory",
	Example: `  smbkit stat '\\fileserver\docs\report.pdf'
  smbkit stat smb://fileserver/docs/report.pdf -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			info, err := a.fs.Stat(ctx, a.scope, args[0])
			if err != nil {
				return err
			}
			return a.printer.Print(newFileEntry(args[0], info))
		})
	},
}
