package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyUser  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent queries for a user",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyUser, "user", "", "user whose history to show (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries")
	_ = historyCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	entries, err := queryService.History(context.Background(), historyUser, historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("No history.")
		return nil
	}
	for _, e := range entries {
		cmd.Printf("%s  %q  %d results  top %.3f  %d ms\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Query, e.ResultCount, e.TopScore, e.LatencyMS)
	}
	return nil
}
