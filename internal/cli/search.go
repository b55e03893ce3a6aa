package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqtrace/internal/pipeline"
)

var (
	searchStore string
	searchInput string
	searchK     int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find the requirements nearest to a piece of text",
	Long: `Search embeds the query with the configured embedder and returns the nearest
requirements from the vector store, or from the embeddings of a categorized
artifact when --input is given.

Example:
  reqtrace search "encrypt patient data" --store reqtrace-vectors.db -k 3
  reqtrace search "audit log retention" --input out/categorized_requirements.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchStore, "store", "", "vector store path (default: vector_store.path)")
	searchCmd.Flags().StringVar(&searchInput, "input", "", "categorized requirements artifact to search instead of the store")
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 0, "number of results (default: vector_store.top_k)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if searchStore != "" {
		cfg.VectorStore.Path = searchStore
	}
	k := searchK
	if k <= 0 {
		k = cfg.VectorStore.TopK
	}

	ctx, cancel := commandContext()
	defer cancel()

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	hits, err := p.Search(ctx, strings.Join(args, " "), searchInput, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for i, h := range hits {
		fmt.Printf("%2d. %-10s %.4f  %s\n", i+1, h.RequirementID, h.Distance, h.Title)
	}
	return nil
}
