package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/app"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/telemetry"
)

func newSearchCmd() *cobra.Command {
	var (
		mode       string
		topK       int
		rerank     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search ingested documents",
		Long: `Searches the scope's collection with the selected mode: dense (vector
similarity), sparse (keyword relevance), or hybrid (RRF fusion of
both, the default). Optional reranking: mmr for diversity.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := resolveScope()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    offline,
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			opts := search.Options{
				Mode:            search.Mode(mode),
				Collections:     []string{sc.Collection()},
				TopK:            topK,
				RRFConstant:     a.Config.Search.RRFConstant,
				OverfetchFactor: a.Config.Search.OverfetchFactor,
			}
			switch rerank {
			case "", "none":
			case "mmr":
				opts.Reranker = search.NewMMRReranker(a.Embedder, a.Config.Search.MMRLambda)
			default:
				return fmt.Errorf("unknown rerank strategy %q (none, mmr)", rerank)
			}

			start := time.Now()
			results, err := a.Engine.Search(cmd.Context(), query, opts)
			if err != nil {
				return err
			}

			// Metrics are best-effort; a broken metrics DB never fails a
			// search.
			if err := a.Metrics.Record(cmd.Context(), telemetry.SearchObservation{
				Mode:        string(opts.Mode),
				Query:       query,
				Latency:     time.Since(start),
				ResultCount: len(results),
			}); err != nil {
				a.Logger.Warn("record search metrics", "error", err)
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			printResults(query, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(search.ModeHybrid), "Search mode: dense, sparse, hybrid")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default from config)")
	cmd.Flags().StringVar(&rerank, "rerank", "", "Rerank strategy: none, mmr")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}

func printResults(query string, results []*search.Result) {
	if len(results) == 0 {
		fmt.Printf("no results for %q\n", query)
		return
	}
	for _, r := range results {
		fmt.Printf("%2d. [%5.1f] %s (doc %s", r.Rank, r.Score, r.ChunkID, r.DocumentID)
		if r.PageNumber > 0 {
			fmt.Printf(", page %d", r.PageNumber)
		}
		fmt.Printf(") via %s\n", strings.Join(r.Sources, "+"))
		if r.Text != "" {
			fmt.Printf("    %s\n", snippet(r.Text, 160))
		}
	}
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
