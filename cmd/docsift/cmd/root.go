// Package cmd provides the CLI commands for docsift.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/profiling"
	"github.com/docsift/docsift/internal/scope"
	"github.com/docsift/docsift/pkg/version"
)

// Flags shared by every subcommand.
var (
	configPath string
	debugMode  bool
	offline    bool

	ownerID      string
	sharedScope  bool
	explicitColl string

	cpuProfile  string
	heapProfile string
)

// NewRootCmd creates the root command for the docsift CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsift",
		Short: "PDF ingestion and hybrid retrieval",
		Long: `docsift ingests PDF documents through a staged pipeline (validate,
parse, chunk, embed, index, store) and retrieves them with dense,
sparse, or RRF-fused hybrid search.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	profiler := profiling.NewProfiler()
	var stopCPUProfile func()

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cpuProfile == "" {
			return nil
		}
		stop, err := profiler.StartCPU(cpuProfile)
		if err != nil {
			return err
		}
		stopCPUProfile = stop
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if stopCPUProfile != nil {
			stopCPUProfile()
		}
		if heapProfile != "" {
			return profiler.WriteHeap(heapProfile)
		}
		return nil
	}

	cmd.SetVersionTemplate("docsift version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use static embeddings (no provider calls)")

	cmd.PersistentFlags().StringVar(&ownerID, "owner", "", "Owner ID for the target scope")
	cmd.PersistentFlags().BoolVar(&sharedScope, "shared", false, "Use the shared tenant scope instead of a private one")
	cmd.PersistentFlags().StringVar(&explicitColl, "collection", "", "Explicit collection name (bypasses scope naming)")

	cmd.PersistentFlags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&heapProfile, "heap-profile", "", "Write a heap profile to this file on exit")
	_ = cmd.PersistentFlags().MarkHidden("cpu-profile")
	_ = cmd.PersistentFlags().MarkHidden("heap-profile")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDocumentsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveScope builds the scope identifier from the shared flags.
func resolveScope() (scope.Identifier, error) {
	if ownerID == "" {
		return scope.Identifier{}, fmt.Errorf("--owner is required")
	}
	visibility := scope.VisibilityPrivate
	if sharedScope {
		visibility = scope.VisibilityShared
	}
	id := scope.New(ownerID, visibility)
	if explicitColl != "" {
		id = id.WithCollection(explicitColl)
	}
	if err := id.Validate(); err != nil {
		return scope.Identifier{}, err
	}
	return id, nil
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
