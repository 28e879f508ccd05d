package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"ragcore/internal/usecase"
)

var (
	askText    string
	askFilters string
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question using retrieved context",
	Long: `Retrieve relevant chunks and generate an answer grounded in them.
Requires a configured generation provider (and its API key, if any).

Examples:
  ragcore ask -q "what is the capital of France?"
  ragcore ask -q "summarize chapter 2" --filters '{"source": "book.md"}'`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question (required)")
	askCmd.Flags().StringVar(&askFilters, "filters", "", "metadata filters as JSON")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall answer timeout")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(askFilters)
	if err != nil {
		return err
	}

	pipeline, artifacts, err := newPipeline(GetConfig(), GetRootDir(), true, nil)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	if err := pipeline.LoadArtifacts(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	dispatcher := usecase.NewDispatcher(pipeline, GetConfig().Retrieve.Workers)
	answer, err := dispatcher.Answer(ctx, askText, filters)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	fmt.Println(answer)
	return nil
}
