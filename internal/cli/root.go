// Package cli implements the tansaku command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/app"
	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/pkg/utils"
)

// DefaultConfigFile is looked up in the working directory before the user config.
const DefaultConfigFile = "tansaku.yaml"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	output     string
	serverURL  string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "tansaku",
		Short: "Retrieval service: chunk, embed, search and expand",
		Long: `tansaku ingests documents into a vector index and a structured store,
and answers queries by embedding them, searching the index, resolving chunk
bodies and expanding graph relationships around the candidates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := ParseOutputFormat(opts.output)
			return err
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ./"+DefaultConfigFile+", then ~/.config/tansaku/config.yaml)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringVarP(&opts.output, "output", "o", string(OutputText), "output format: text or json")
	pf.StringVar(&opts.serverURL, "server", "", "tansaku server URL; search and status go over HTTP when set")

	root.AddCommand(
		newServeCommand(opts),
		newSearchCommand(opts),
		newIngestCommand(opts),
		newChunkCommand(opts),
		newStatusCommand(opts),
		newWatchCommand(opts),
		newDeleteCommand(opts),
		newVersionCommand(version),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	if err := NewRootCommand(version).Execute(); err != nil {
		return 1
	}
	return 0
}

func (o *globalOptions) format() OutputFormat {
	f, _ := ParseOutputFormat(o.output)
	return f
}

// resolveConfigPath returns the explicit --config path, else the first
// existing default location, else "" for built-in defaults.
func (o *globalOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	candidates := []string{DefaultConfigFile}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tansaku", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadConfig loads the resolved config file, or defaults plus environment
// when there is none. It returns the path actually loaded.
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	path := o.resolveConfigPath()
	if path == "" {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, "", err
		}
		cfg := &config.Config{}
		config.ApplyEnv(cfg)
		config.ApplyDefaults(cfg)
		return cfg, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// openApp loads the config, lets mutate adjust it, and builds the application.
func (o *globalOptions) openApp(ctx context.Context, mutate func(*config.Config)) (*app.App, string, error) {
	cfg, path, err := o.loadConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger, err := utils.NewLogger(o.debug || cfg.Debug)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path))
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, "", err
	}
	return a, path, nil
}

func closeApp(a *app.App) {
	_ = a.Close()
	_ = a.Logger.Sync()
}
