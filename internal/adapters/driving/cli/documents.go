package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

var (
	listStatus string
	listPage   int
	listSize   int
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage uploaded documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one document's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsURLCmd = &cobra.Command{
	Use:   "url [id]",
	Short: "Print a download URL for the stored original",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsURL,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsReprocessCmd = &cobra.Command{
	Use:   "reprocess [id]",
	Short: "Re-run extraction and indexing from the stored original",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsReprocess,
}

func init() {
	documentsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, processing, completed, error)")
	documentsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	documentsListCmd.Flags().IntVar(&listSize, "size", 20, "page size")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsURLCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsReprocessCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	status := domain.Status(listStatus)
	if listStatus != "" && !status.Valid() {
		return fmt.Errorf("invalid status %q", listStatus)
	}

	docs, total, err := ingestService.List(context.Background(), driven.ListOptions{
		Page:     listPage,
		PageSize: listSize,
		Status:   status,
	})
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if total == 0 {
		cmd.Println("No documents.")
		return nil
	}
	cmd.Printf("%d documents (page %d):\n", total, listPage)
	for _, doc := range docs {
		cmd.Printf("  %s  %-10s  %s\n", doc.ID, doc.Status, doc.OriginalFilename)
		if doc.Status == domain.StatusError && doc.ErrorMessage != "" {
			cmd.Printf("      error: %s\n", doc.ErrorMessage)
		}
	}
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	doc, err := ingestService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	cmd.Printf("ID:          %s\n", doc.ID)
	cmd.Printf("Filename:    %s\n", doc.OriginalFilename)
	cmd.Printf("Type:        %s (%d bytes)\n", doc.FileType, doc.FileSize)
	cmd.Printf("Status:      %s\n", doc.Status)
	if doc.ErrorMessage != "" {
		cmd.Printf("Error:       %s\n", doc.ErrorMessage)
	}
	cmd.Printf("Application: %s\n", orDash(doc.Meta.Application))
	cmd.Printf("Issue:       %s\n", orDash(doc.Meta.Issue))
	cmd.Printf("Ingredient:  %s\n", orDash(doc.Meta.Ingredient))
	cmd.Printf("Customer:    %s\n", orDash(doc.Meta.Customer))
	cmd.Printf("Trial ID:    %s\n", orDash(doc.Meta.TrialID))
	cmd.Printf("Uploaded:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.IndexedAt != nil {
		cmd.Printf("Indexed:     %s\n", doc.IndexedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runDocumentsURL(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	url, err := ingestService.DownloadURL(context.Background(), args[0])
	switch {
	case errors.Is(err, domain.ErrDocumentNotReady):
		return errors.New("document is still being processed")
	case errors.Is(err, domain.ErrBlobMissing):
		return errors.New("no stored original for this document")
	case err != nil:
		return fmt.Errorf("download URL: %w", err)
	}

	cmd.Println(url)
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	cmd.Printf("deleted %s\n", args[0])
	return nil
}

func runDocumentsReprocess(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Reprocess(context.Background(), args[0]); err != nil {
		return fmt.Errorf("reprocess document: %w", err)
	}
	cmd.Printf("reprocessing %s\n", args[0])
	if queueWait != nil {
		queueWait()
	}
	return nil
}
