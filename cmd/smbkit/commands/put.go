package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/cli/timeutil"
)

var (
	putAppend    bool
	putNoClobber bool
)

var putCmd = &cobra.Command{
	Use:   "put <local|-> <path>",
	Short: "Upload a local file or stdin to a remote path",
	Example: `  smbkit put report.pdf '\\fileserver\docs\report.pdf'
  echo hello | smbkit put - smb://fileserver/docs/hello.txt --append`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		local, remote := args[0], args[1]

		src, done, err := openLocal(cmd, local)
		if err != nil {
			return err
		}
		defer done()

		return runRemote(cmd, remote, func(ctx context.Context, a *app) error {
			flag := os.O_WRONLY | os.O_CREATE
			switch {
			case putAppend:
				flag |= os.O_APPEND
			case putNoClobber:
				flag |= os.O_EXCL
			default:
				flag |= os.O_TRUNC
			}

			s, err := a.fs.OpenStream(ctx, remote, flag)
			if err != nil {
				return err
			}
			s = s.WithContext(ctx)

			start := time.Now()
			n, copyErr := io.Copy(s, src)
			closeErr := s.Close()
			if copyErr != nil {
				return copyErr
			}
			if closeErr != nil {
				return closeErr
			}

			elapsed := time.Since(start)
			a.printer.Infof("wrote %d bytes to %s in %s (%s)", n, remote,
				timeutil.FormatElapsed(elapsed), timeutil.FormatRate(n, elapsed))
			return nil
		})
	},
}

func init() {
	putCmd.Flags().BoolVarP(&putAppend, "append", "a", false, "append to an existing file")
	putCmd.Flags().BoolVarP(&putNoClobber, "no-clobber", "n", false, "fail if the remote file exists")
	putCmd.MarkFlagsMutuallyExclusive("append", "no-clobber")
}
