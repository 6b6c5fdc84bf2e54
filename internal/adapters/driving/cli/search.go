package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shokudev/kura/internal/core/domain"
)

var (
	searchTop        int
	searchJSON       bool
	searchUser       string
	filterApp        string
	filterIssue      string
	filterIngredient string
	filterCustomer   string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Ask a question against the knowledge base",
	Long: `Runs a retrieval-augmented query: the question is embedded, matched
against the index with combined keyword and vector search, and an
answer is generated from the best-matching records.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTop, "top", "n", 0, "maximum number of candidates (0 = configured default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the full answer as JSON")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "record the query in this user's history")
	searchCmd.Flags().StringVar(&filterApp, "application", "", "filter by application")
	searchCmd.Flags().StringVar(&filterIssue, "issue", "", "filter by issue")
	searchCmd.Flags().StringVar(&filterIngredient, "ingredient", "", "filter by ingredient")
	searchCmd.Flags().StringVar(&filterCustomer, "customer", "", "filter by customer")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	opts := domain.SearchOptions{
		TopK:   searchTop,
		UserID: searchUser,
		Filters: domain.SearchFilters{
			Application: filterApp,
			Issue:       filterIssue,
			Ingredient:  filterIngredient,
			Customer:    filterCustomer,
		},
	}

	answer, err := queryService.Search(context.Background(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Response)
	cmd.Println()

	if len(answer.Results) == 0 {
		return nil
	}
	cmd.Printf("Sources (%d of %d candidates):\n", len(answer.Results), answer.TotalResults)
	for i, r := range answer.Results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Filename, r.Score)
		if r.Application != "" || r.Issue != "" || r.Ingredient != "" {
			cmd.Printf("      %s / %s / %s\n", orDash(r.Application), orDash(r.Issue), orDash(r.Ingredient))
		}
		if r.Preview != "" {
			cmd.Printf("      %s\n", r.Preview)
		}
	}
	cmd.Printf("\n%d ms\n", answer.LatencyMS)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
