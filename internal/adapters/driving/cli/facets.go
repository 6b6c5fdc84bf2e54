package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "List the filter values present in the knowledge base",
	RunE:  runFacets,
}

func init() {
	rootCmd.AddCommand(facetsCmd)
}

func runFacets(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	facets, err := queryService.Facets(context.Background())
	if err != nil {
		return fmt.Errorf("load facets: %w", err)
	}

	cmd.Printf("Applications: %s\n", joinOrNone(facets.Applications))
	cmd.Printf("Issues:       %s\n", joinOrNone(facets.Issues))
	cmd.Printf("Ingredients:  %s\n", joinOrNone(facets.Ingredients))
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
