package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/app"
	"github.com/docsift/docsift/internal/pipeline"
	"github.com/docsift/docsift/internal/scope"
	"github.com/docsift/docsift/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a drop directory and ingest PDFs as they land",
		Long: `Watches a directory and runs the ingestion pipeline on every PDF that
is created or modified in it. Files already present when watching starts
are not re-ingested. Deleting a file from the directory does not remove
the document; use 'docsift documents delete' for that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := resolveScope()
			if err != nil {
				return err
			}
			dir := args[0]

			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    offline,
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := watcher.NewDropWatcher(watcher.Options{
				DebounceWindow: debounce,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- w.Start(ctx, dir)
			}()

			fmt.Printf("watching %s (%s), collection %s\n", dir, w.WatcherType(), sc.Collection())

			for {
				select {
				case <-ctx.Done():
					_ = w.Stop()
					<-watchErr
					fmt.Println("stopped")
					return nil
				case err := <-watchErr:
					if err != nil && ctx.Err() == nil {
						return err
					}
					return nil
				case batch, ok := <-w.Events():
					if !ok {
						return nil
					}
					for _, ev := range batch {
						handleWatchEvent(ctx, a, sc, dir, ev)
					}
				case err, ok := <-w.Errors():
					if ok && err != nil {
						printErr("watch: %v", err)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0,
		"How long a file must be quiet before ingestion (default 500ms)")
	return cmd
}

func handleWatchEvent(ctx context.Context, a *app.App, sc scope.Identifier, dir string, ev watcher.FileEvent) {
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
	default:
		// Deletes and renames don't remove documents from the index.
		return
	}

	path := filepath.Join(dir, ev.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		printErr("read %s: %v", path, err)
		return
	}

	docID := defaultDocumentID(path, data)
	run := pipeline.NewContext(docID, filepath.Base(path), data, sc)
	result := a.Orchestrator.Process(ctx, run)
	printIngestResult(path, result)
}
