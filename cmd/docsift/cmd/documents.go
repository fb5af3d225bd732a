package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/app"
	"github.com/docsift/docsift/internal/chunk"
)

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage ingested documents",
	}
	cmd.AddCommand(newDocumentsListCmd())
	cmd.AddCommand(newDocumentsDeleteCmd())
	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents in the scope's collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := resolveScope()
			if err != nil {
				return err
			}

			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    true, // listing never needs the embedding provider
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Registry.List(cmd.Context(), sc.Collection())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("no documents in %s\n", sc.Collection())
				return nil
			}

			fmt.Printf("%-30s %-24s %7s %-9s %s\n", "DOCUMENT", "FILE", "CHUNKS", "STATUS", "INGESTED")
			for _, rec := range records {
				fmt.Printf("%-30s %-24s %7d %-9s %s\n",
					rec.ID, rec.Filename, rec.ChunkCount, rec.Status,
					rec.IngestedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newDocumentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and all its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID := args[0]

			a, err := app.Open(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Offline:    true,
				Debug:      debugMode,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			rec, err := a.Registry.Get(ctx, docID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("document %q not found", docID)
			}

			ids := make([]string, rec.ChunkCount)
			for i := range ids {
				ids[i] = chunk.ChunkID(rec.ID, i)
			}
			if err := a.Vectors.Delete(ctx, rec.Collection, ids); err != nil {
				return err
			}
			if err := a.Lexical.Delete(ctx, rec.Collection, ids); err != nil {
				return err
			}
			prefix := fmt.Sprintf("%s/documents/%s", rec.Collection, rec.ID)
			if err := a.Objects.DeletePrefix(ctx, prefix); err != nil {
				return err
			}
			if err := a.Registry.Delete(ctx, rec.ID); err != nil {
				return err
			}

			fmt.Printf("deleted %s (%d chunks) from %s\n", rec.ID, rec.ChunkCount, rec.Collection)
			return nil
		},
	}
}
