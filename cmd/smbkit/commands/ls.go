package commands

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/cli/output"
	"github.com/marmos91/smbkit/pkg/smbpath"
)

var lsCmd = &cobra.Command{
	Use:     "ls <path>",
	Aliases: []string{"list"},
	Short:   "List a remote directory",
	Example: `  smbkit ls '\\fileserver\docs'
  smbkit ls smb://fileserver/docs/reports -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			infos, err := a.fs.ReadDir(ctx, a.scope, args[0])
			if err != nil {
				return err
			}

			list := make(entryList, 0, len(infos))
			for _, fi := range infos {
				p, err := smbpath.Join(args[0], fi.Name)
				if err != nil {
					return err
				}
				list = append(list, newFileEntry(p, fi))
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

			if len(list) == 0 && a.printer.Format() == output.FormatText {
				a.printer.Infof("(empty)")
				return nil
			}
			return a.printer.Print(list)
		})
	},
}
