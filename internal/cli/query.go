package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText    string
	queryFilters string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve relevant chunks for a question",
	Long: `Retrieve the most relevant indexed chunks for a question, without
invoking the generator.

Filters use the metadata operator syntax, e.g.
  '{"source": "doc.md"}'
  '{"chunk_id": {"$gte": 10}}'

Examples:
  ragcore query -q "vector search"
  ragcore query -q "chunking" --filters '{"source": "docs/guide.md"}' --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	queryCmd.Flags().StringVar(&queryFilters, "filters", "", "metadata filters as JSON")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func parseFilters(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var filters map[string]any
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("invalid --filters JSON: %w", err)
	}
	return filters, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	pipeline, artifacts, err := newPipeline(GetConfig(), GetRootDir(), false, nil)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	if err := pipeline.LoadArtifacts(); err != nil {
		return err
	}

	results, err := pipeline.Retriever().Retrieve(queryText, filters)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, text := range results {
		fmt.Printf("--- [%d] ---\n", i+1)
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
