package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tansaku/internal/models"
)

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var (
		limit     int
		namespace string
		filter    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ingested chunks",
		Long: `Embeds the query, searches the vector index, resolves chunk bodies and
expands graph relationships. All arguments are joined into one query, so
quoting is optional.`,
		Example: `  tansaku search how are chunks resolved
  tansaku search --limit 10 --filter document_id=doc-1 "chunk overlap"
  tansaku search --server http://localhost:8080 -o json retrieval`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := &models.SearchQuery{
				Query:     strings.TrimSpace(strings.Join(args, " ")),
				Limit:     limit,
				Namespace: namespace,
				Filter:    filter,
			}
			ctx := cmd.Context()
			var (
				res *models.RetrievalResult
				err error
			)
			if opts.serverURL != "" {
				res, err = newClient(opts.serverURL).Search(ctx, q)
			} else {
				a, _, openErr := opts.openApp(ctx, nil)
				if openErr != nil {
					return openErr
				}
				defer closeApp(a)
				res, err = a.Engine.Search(ctx, q)
			}
			if err != nil {
				return err
			}
			return WriteRetrieval(cmd.OutOrStdout(), res, opts.format())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum matches (default from retrieval.default_limit)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "vector index namespace")
	cmd.Flags().StringToStringVar(&filter, "filter", nil, "metadata filter, key=value (repeatable)")
	return cmd
}
