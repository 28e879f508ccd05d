package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragcore/config"
	"ragcore/internal/adapter/store"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show persisted index information",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	dbPath := config.ArtifactsPath(GetRootDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no artifacts found; run 'ragcore build' first")
	}

	artifacts, err := store.NewBoltArtifactStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	defer artifacts.Close()

	if !artifacts.HasArtifacts() {
		return fmt.Errorf("no artifacts found; run 'ragcore build' first")
	}

	m, err := artifacts.GetManifest()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	fmt.Printf("Index manifest:\n")
	fmt.Printf("  Embed model:      %s\n", m.EmbedModel)
	if m.GeneratorModel != "" {
		fmt.Printf("  Generator model:  %s\n", m.GeneratorModel)
	}
	fmt.Printf("  Top K:            %d\n", m.TopK)
	fmt.Printf("  Strategy:         %s\n", m.ChunkingStrategy)
	fmt.Printf("  Chunk size:       %d\n", m.ChunkSize)
	fmt.Printf("  Chunk overlap:    %d\n", m.ChunkOverlap)
	fmt.Printf("  Total chunks:     %d\n", m.TotalChunks)
	fmt.Printf("  Metadata enabled: %v\n", m.MetadataEnabled)
	fmt.Printf("  Created at:       %s\n", m.CreatedAt)
	return nil
}
