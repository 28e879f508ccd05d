package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Chunk, embed, and index documents",
	Long: `Build a vector index over a document or a directory of documents.
Artifacts are stored in .rag/artifacts.db within the root directory and
reused on later runs unless the source or chunking parameters changed.

Examples:
  ragcore build doc.md            # Index a single document
  ragcore build ./docs            # Index every matching file under ./docs
  ragcore build doc.md --force    # Rebuild even if artifacts exist`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "rebuild even when persisted artifacts exist")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	pipeline, artifacts, err := newPipeline(GetConfig(), GetRootDir(), false, progress)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	if info.IsDir() {
		err = pipeline.LoadFromDir(path, buildForce)
	} else {
		err = pipeline.LoadFromFile(path, buildForce)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	r := pipeline.Retriever()
	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Chunks indexed: %d\n", r.DocumentCount())
	fmt.Printf("  Index kind:     %s\n", r.IndexKind())
	fmt.Printf("\nArtifacts stored under: %s\n", filepath.Join(GetRootDir(), ".rag"))
	return nil
}
