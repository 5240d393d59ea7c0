package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/watcher"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Ingest files dropped into inbox directories",
		Long: `Watches the given directories, plus watch.directories from the config,
and ingests created or modified files once they settle. Deleted files are
removed from the index. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, _, err := opts.openApp(ctx, func(cfg *config.Config) {
				cfg.Watch.Directories = append(cfg.Watch.Directories, args...)
			})
			if err != nil {
				return err
			}
			defer closeApp(a)
			if len(a.Config.Watch.Directories) == 0 {
				return errors.New("no directories to watch: pass them as arguments or set watch.directories")
			}

			w := watcher.New(a.Config.Watch, a.Indexer, watcher.WithLogger(a.Logger))
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			if !noSync {
				w.SyncExisting(ctx)
			}
			a.Logger.Info("watching", zap.Strings("directories", w.Directories()))
			cmd.Printf("watching %d directories, press Ctrl+C to stop\n", len(w.Directories()))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip ingesting files already present")
	return cmd
}
