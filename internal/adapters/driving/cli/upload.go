package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadWait bool

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents into the knowledge base",
	Long: `Uploads one or more files. Each file is registered immediately and
processed in the background: text extraction, chunking, embedding, and
indexing. Check progress with "kura documents list".

Metadata is parsed from the filename convention
application_issue_ingredient_customer_trialID.ext, for example
PAN_離水_ペクチン_ベーカリーA_ID123.xlsx.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadWait, "wait", true, "wait for background processing to finish")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	var failed int
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("skipping %s: %v\n", path, err)
			failed++
			continue
		}

		doc, err := ingestService.Upload(ctx, filepath.Base(path), content)
		if err != nil {
			cmd.PrintErrf("skipping %s: %v\n", path, err)
			failed++
			continue
		}
		cmd.Printf("uploaded %s (id %s)\n", doc.OriginalFilename, doc.ID)
	}

	if uploadWait && queueWait != nil {
		queueWait()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
