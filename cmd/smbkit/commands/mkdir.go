package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/pkg/smbpath"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a remote directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			if mkdirParents {
				return mkdirAll(ctx, a, args[0])
			}
			if err := a.fs.Mkdir(ctx, a.scope, args[0]); err != nil {
				return err
			}
			a.printer.Infof("created %s", args[0])
			return nil
		})
	},
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing parents; an existing directory is not an error")
}

// mkdirAll creates path and every missing ancestor below the share root.
func mkdirAll(ctx context.Context, a *app, path string) error {
	addr, err := smbpath.ParseShare(path)
	if err != nil {
		return err
	}

	var missing []smbpath.Address
	for cur := addr; !cur.IsShareRoot(); cur = cur.Parent() {
		ok, err := a.fs.Exists(ctx, a.scope, cur.String())
		if err != nil {
			return err
		}
		if ok {
			break
		}
		missing = append(missing, cur)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		p := missing[i].String()
		if err := a.fs.Mkdir(ctx, a.scope, p); err != nil {
			return err
		}
		a.printer.Infof("created %s", p)
	}
	return nil
}
