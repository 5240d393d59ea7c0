package cli

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/tansaku/internal/app"
)

func newStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show document, chunk and index counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var (
				st  *app.Status
				err error
			)
			if opts.serverURL != "" {
				st, err = newClient(opts.serverURL).Status(ctx)
			} else {
				a, _, openErr := opts.openApp(ctx, nil)
				if openErr != nil {
					return openErr
				}
				defer closeApp(a)
				st, err = a.Status(ctx)
			}
			if err != nil {
				return err
			}
			return WriteStatus(cmd.OutOrStdout(), st, opts.format())
		},
	}
}
