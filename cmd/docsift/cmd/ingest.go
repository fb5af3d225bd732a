package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/app"
	"github.com/docsift/docsift/internal/pipeline"
)

func newIngestCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "ingest <file.pdf> [more.pdf...]",
		Short: "Ingest PDF documents into the index",
		Long: `Runs each file through the ingestion pipeline. Re-ingesting a document
ID replaces the prior version; submitting identical content twice into
the same scope reports a duplicate without re-processing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := resolveScope()
			if err != nil {
				return err
			}
			if documentID != "" && len(args) > 1 {
				return fmt.Errorf("--document-id only applies to a single file")
			}

			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    offline,
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					printErr("read %s: %v", path, err)
					failed++
					continue
				}

				docID := documentID
				if docID == "" {
					docID = defaultDocumentID(path, data)
				}

				run := pipeline.NewContext(docID, filepath.Base(path), data, sc)
				result := a.Orchestrator.Process(cmd.Context(), run)
				printIngestResult(path, result)
				if !result.Success {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "",
		"Stable document ID (default: derived from filename and content)")
	return cmd
}

// defaultDocumentID derives a stable ID from the file name plus a short
// content digest, so renaming changes identity but editing content does too.
func defaultDocumentID(path string, data []byte) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(sum[:4]))
}

func printIngestResult(path string, result *pipeline.IngestResult) {
	switch {
	case result.Duplicate:
		fmt.Printf("%s: duplicate of existing content in %s (%d chunks), skipped\n",
			path, result.Collection, result.ChunkCount)
	case result.Success:
		fmt.Printf("%s: ingested as %s (%d chunks, %s)\n",
			path, result.DocumentID, result.ChunkCount, result.Duration.Round(time.Millisecond))
		for _, st := range result.Stages {
			fmt.Printf("  %-10s %8s\n", st.Name, st.Duration.Round(time.Millisecond))
		}
	default:
		fmt.Printf("%s: failed at %s stage: %v\n", path, result.OriginatingStage, result.Err)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
