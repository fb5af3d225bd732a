package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/app"
	"github.com/docsift/docsift/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local search metrics",
		Long: `Prints search metrics recorded on this machine: mode usage, latency
distribution, top query terms, and recent queries that returned nothing.
Nothing is ever reported externally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    true,
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Metrics.Summarize(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printStats(summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit metrics as JSON")
	return cmd
}

func printStats(s *telemetry.Summary) {
	fmt.Printf("searches: %d\n", s.TotalSearches)
	if s.TotalSearches == 0 {
		return
	}

	fmt.Println("\nby mode:")
	for _, mode := range []string{"dense", "sparse", "hybrid"} {
		if count, ok := s.ByMode[mode]; ok {
			fmt.Printf("  %-8s %d\n", mode, count)
		}
	}

	fmt.Println("\nlatency:")
	buckets := []struct {
		bucket telemetry.LatencyBucket
		label  string
	}{
		{telemetry.BucketP10, "<10ms"},
		{telemetry.BucketP50, "10-50ms"},
		{telemetry.BucketP100, "50-100ms"},
		{telemetry.BucketP500, "100-500ms"},
		{telemetry.BucketP1000, ">=500ms"},
	}
	for _, b := range buckets {
		if count, ok := s.LatencyHistogram[b.bucket]; ok {
			fmt.Printf("  %-10s %d\n", b.label, count)
		}
	}

	if len(s.TopTerms) > 0 {
		fmt.Println("\ntop terms:")
		for _, tc := range s.TopTerms {
			fmt.Printf("  %-20s %d\n", tc.Term, tc.Count)
		}
	}

	if len(s.ZeroResultQueries) > 0 {
		fmt.Println("\nrecent zero-result queries:")
		limit := len(s.ZeroResultQueries)
		if limit > 10 {
			limit = 10
		}
		for _, q := range s.ZeroResultQueries[:limit] {
			fmt.Printf("  %s\n", q)
		}
	}
}
