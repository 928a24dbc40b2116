package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loupe-ai/loupe/internal/media"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest media into the knowledge base",
}

var ingestDocumentCmd = &cobra.Command{
	Use:   "document <path>",
	Short: "Ingest a document (chunked and indexed for retrieval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, media.KindDocument, args[0])
	},
}

var ingestImageCmd = &cobra.Command{
	Use:   "image <path>",
	Short: "Ingest an image (thumbnailed and indexed for retrieval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, media.KindImage, args[0])
	},
}

var ingestVideoCmd = &cobra.Command{
	Use:   "video <path>",
	Short: "Ingest a video (keyframes and transcript indexed for retrieval)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, media.KindVideo, args[0])
	},
}

var ingestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested media",
	Args:  cobra.NoArgs,
	RunE:  runIngestList,
}

var ingestDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an ingested item and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestDelete,
}

func init() {
	ingestCmd.AddCommand(ingestDocumentCmd, ingestImageCmd, ingestVideoCmd, ingestListCmd, ingestDeleteCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, kind media.Kind, path string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var item *media.Item
	switch kind {
	case media.KindDocument:
		item, err = a.Media.IngestDocument(ctx, path)
	case media.KindImage:
		item, err = a.Media.IngestImage(ctx, path)
	case media.KindVideo:
		item, err = a.Media.IngestVideo(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s %s (%s)\n", item.Kind, item.Title, item.ID)
	return nil
}

func runIngestList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Media.List(ctx, "")
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No media ingested yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTITLE\tINGESTED")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.ID, item.Kind, item.Title, item.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runIngestDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", args[0], err)
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Media.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	return nil
}
