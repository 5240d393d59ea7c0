package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/extract"
	"github.com/hyperjump/tansaku/internal/indexer"
	"github.com/hyperjump/tansaku/internal/models"
)

// chunkFlags overrides the configured chunk sizes when set.
type chunkFlags struct {
	size    int
	overlap int
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.size, "chunk-size", 0, "chunk size in characters (default from chunking.chunk_size)")
	cmd.Flags().IntVar(&f.overlap, "chunk-overlap", -1, "chunk overlap in characters (default from chunking.chunk_overlap)")
}

func (f *chunkFlags) apply(cfg *config.Config) {
	if f.size > 0 {
		cfg.Chunking.ChunkSize = f.size
	}
	if f.overlap >= 0 {
		cfg.Chunking.ChunkOverlap = f.overlap
	}
}

func newIngestCommand(opts *globalOptions) *cobra.Command {
	var (
		recursive bool
		chunks    chunkFlags
	)
	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>...",
		Short: "Ingest files into the index",
		Long: `Extracts text from each file, chunks it, and stores the chunks in the
vector index and the structured store. Directories are walked for supported
file types. Unchanged files are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.openApp(ctx, chunks.apply)
			if err != nil {
				return err
			}
			defer closeApp(a)

			var reports []*models.IngestReport
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() {
					rs, err := a.Indexer.IngestDirectory(ctx, path, recursive)
					reports = append(reports, rs...)
					if err != nil {
						return err
					}
					continue
				}
				r, err := a.Indexer.IngestFile(ctx, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				reports = append(reports, r)
			}
			return WriteReports(cmd.OutOrStdout(), reports, opts.format())
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "walk subdirectories")
	chunks.register(cmd)
	return cmd
}

func newChunkCommand(opts *globalOptions) *cobra.Command {
	var chunks chunkFlags
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Preview how a file would be chunked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			chunks.apply(cfg)
			text, err := extract.NewRegistry().ExtractFile(args[0])
			if err != nil {
				return err
			}
			chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap,
				indexer.WithBoundaryThreshold(cfg.Chunking.BoundaryThreshold))
			if err != nil {
				return err
			}
			return WriteSpans(cmd.OutOrStdout(), chunker.Spans(indexer.Preprocess(text)), opts.format())
		},
	}
	chunks.register(cmd)
	return cmd
}

func newDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Delete documents with their chunks and vectors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			for _, id := range args {
				if err := a.Indexer.DeleteDocument(ctx, id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				cmd.Printf("deleted %s\n", id)
			}
			return nil
		},
	}
}
