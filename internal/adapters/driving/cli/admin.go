package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepThreshold time.Duration

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative operations",
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE:  runAdminStats,
}

var adminCreateIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Create or update the search index schema",
	RunE:  runAdminCreateIndex,
}

var adminSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark documents stuck in processing as errored",
	RunE:  runAdminSweep,
}

func init() {
	adminSweepCmd.Flags().DurationVar(&sweepThreshold, "threshold", 0, "age before a pending/processing document counts as stuck (0 = configured default)")

	adminCmd.AddCommand(adminStatsCmd)
	adminCmd.AddCommand(adminCreateIndexCmd)
	adminCmd.AddCommand(adminSweepCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminStats(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	stats, err := queryService.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	cmd.Printf("Documents: %d total, %d indexed, %d pending, %d errored\n",
		stats.TotalDocuments, stats.IndexedDocuments, stats.PendingDocuments, stats.ErrorDocuments)
	cmd.Printf("Searches:  %d total, %.0f ms average\n", stats.TotalSearches, stats.AvgResponseTimeMS)
	return nil
}

func runAdminCreateIndex(cmd *cobra.Command, _ []string) error {
	if searchIndex == nil {
		return errors.New("search index not configured")
	}

	if err := searchIndex.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	cmd.Println("index schema is up to date")
	return nil
}

func runAdminSweep(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	threshold := sweepThreshold
	if threshold <= 0 {
		threshold = settings.SweepThreshold()
	}

	reclaimed, err := ingestService.SweepStale(context.Background(), threshold)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	cmd.Printf("reclaimed %d stuck documents\n", reclaimed)
	return nil
}
