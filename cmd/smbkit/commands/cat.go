package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/logger"
)

var (
	catOffset int64
	catLimit  int64
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write a remote file to stdout",
	Example: `  smbkit cat '\\fileserver\docs\notes.txt'
  smbkit cat smb://fileserver/docs/big.iso --offset 1048576 --limit 4096 > part.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args[0], func(ctx context.Context, a *app) error {
			s, err := a.fs.Open(ctx, args[0])
			if err != nil {
				return err
			}
			s = s.WithContext(ctx)
			defer func() {
				if err := s.Close(); err != nil {
					logger.Warn("close failed", logger.Path(args[0]), logger.Err(err))
				}
			}()

			if catOffset > 0 {
				if _, err := s.Seek(catOffset, io.SeekStart); err != nil {
					return err
				}
			}

			var src io.Reader = s
			if catLimit > 0 {
				src = io.LimitReader(s, catLimit)
			}
			_, err = io.Copy(a.printer.Writer(), src)
			return err
		})
	},
}

func init() {
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "start reading at this byte offset")
	catCmd.Flags().Int64Var(&catLimit, "limit", 0, "read at most this many bytes (0 means to the end)")
}
