package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment is ready for ingestion",
		Long: `Validates disk space, write permissions, file descriptor limits, and
embedding provider reachability against the resolved configuration.
Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if offline {
				cfg.Embeddings.Provider = "static"
			}

			checker := preflight.New(preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), cfg)
			checker.PrintResults(results)

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	return cmd
}
