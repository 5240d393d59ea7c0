package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/server"
	"github.com/hyperjump/tansaku/internal/watcher"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, configPath, err := opts.openApp(ctx, func(cfg *config.Config) {
				if host != "" {
					cfg.Server.Host = host
				}
				if port > 0 {
					cfg.Server.Port = port
				}
			})
			if err != nil {
				return err
			}
			defer closeApp(a)
			logger := a.Logger
			logger.Info("config loaded", zap.String("config_path", configPath), zap.Bool("debug", opts.debug || a.Config.Debug))

			w := watcher.New(a.Config.Watch, a.Indexer, watcher.WithLogger(logger))
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			w.SyncInBackground()

			srvOpts := []server.Option{server.WithWatchService(w)}
			if configPath != "" {
				srvOpts = append(srvOpts, server.WithConfigPath(configPath))
			}
			srv := server.NewServer(a, srvOpts...)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from server.port)")
	return cmd
}
