package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the RAG tool.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Sources    SourcesConfig    `yaml:"sources"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig holds document chunking configuration.
type ChunkingConfig struct {
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
	Strategy string `yaml:"strategy"` // "semantic", "recursive", "sentence", "simple"
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Nlist  int  `yaml:"nlist"`
	Nprobe int  `yaml:"nprobe"`
	UseGPU bool `yaml:"use_gpu"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK           int  `yaml:"top_k"`
	EnableMetadata bool `yaml:"enable_metadata"`
	Workers        int  `yaml:"workers"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Provider  string `yaml:"provider"` // "openai", "deepseek", "ollama"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`
}

// SourcesConfig selects which files a directory build indexes.
type SourcesConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// CacheConfig holds answer-context cache configuration.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSize    int  `yaml:"max_size"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:     512,
			Overlap:  128,
			Strategy: "semantic",
		},
		Index: IndexConfig{
			Nlist:  128,
			Nprobe: 8,
			UseGPU: false,
		},
		Retrieve: RetrieveConfig{
			TopK:           3,
			EnableMetadata: true,
			Workers:        4,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Generation: GenerationConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			MaxTokens: 512,
		},
		Sources: SourcesConfig{
			Includes: []string{"**/*.md", "**/*.txt"},
			Excludes: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/.rag/**"},
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxSize:    100,
			TTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try rag.yaml in the directory
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .rag/config.yaml
	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ArtifactsPath returns the path to the persisted artifact database.
func ArtifactsPath(dir string) string {
	return filepath.Join(dir, ".rag", "artifacts.db")
}

// EnsureRAGDir ensures the .rag directory exists.
func EnsureRAGDir(dir string) error {
	ragDir := filepath.Join(dir, ".rag")
	return os.MkdirAll(ragDir, 0755)
}
