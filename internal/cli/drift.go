package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var driftText string

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Score how far a question drifts from the corpus",
	Long: `Compute the corpus centroid and score how far a question's embedding
drifts from it. 0.0 means the question points at the corpus center;
values near 2.0 mean it points away entirely.

Example:
  ragcore drift -q "quantum chromodynamics"`,
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.Flags().StringVarP(&driftText, "query", "q", "", "question (required)")
	driftCmd.MarkFlagRequired("query")
}

func runDrift(cmd *cobra.Command, args []string) error {
	pipeline, artifacts, err := newPipeline(GetConfig(), GetRootDir(), false, nil)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	if err := pipeline.LoadArtifacts(); err != nil {
		return err
	}

	r := pipeline.Retriever()
	if err := r.ComputeCentroid(); err != nil {
		return fmt.Errorf("failed to compute centroid: %w", err)
	}
	drift, err := r.ComputeDrift(driftText)
	if err != nil {
		return fmt.Errorf("failed to compute drift: %w", err)
	}

	fmt.Printf("Drift: %.4f\n", drift)
	return nil
}
