// Package config loads and validates docsift configuration.
//
// Configuration is resolved in priority order:
//  1. Built-in defaults
//  2. Config file (docsift.yaml)
//  3. Environment variables (DOCSIFT_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docsift configuration.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PipelineConfig configures ingestion pipeline behavior.
type PipelineConfig struct {
	// MaxFileSizeMB is the maximum accepted document size (default: 50).
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// MinTextChars flags documents with less extractable text as low quality.
	MinTextChars int `yaml:"min_text_chars"`

	// EmbedWorkers bounds the concurrency of embedding batch calls (default: 4).
	EmbedWorkers int `yaml:"embed_workers"`

	// StageTimeout is the per-external-call timeout within stages.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// ChunkingConfig configures the token-based chunker.
type ChunkingConfig struct {
	// MaxTokens is the maximum number of tokens per chunk (default: 400).
	MaxTokens int `yaml:"max_tokens"`

	// OverlapTokens is the number of tokens repeated from the previous chunk
	// for context continuity (default: 50).
	OverlapTokens int `yaml:"overlap_tokens"`

	// PreservePages prevents chunks from spanning page boundaries.
	PreservePages bool `yaml:"preserve_pages"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string        `yaml:"provider"`    // "ollama" or "static"
	Model      string        `yaml:"model"`       // embedding model name
	Dimensions int           `yaml:"dimensions"`  // 0 = auto-detect
	BatchSize  int           `yaml:"batch_size"`  // texts per provider request
	OllamaHost string        `yaml:"ollama_host"` // Ollama API endpoint
	Timeout    time.Duration `yaml:"timeout"`     // per-request timeout
	CacheSize  int           `yaml:"cache_size"`  // LRU embedding cache entries
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter k (default: 60).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant"`

	// TopK is the default number of results to return (default: 10).
	TopK int `yaml:"top_k"`

	// OverfetchFactor multiplies top_k for per-mode candidate retrieval in
	// hybrid mode so fusion has enough material (default: 2).
	OverfetchFactor int `yaml:"overfetch_factor"`

	// MMRLambda balances relevance against diversity for MMR reranking
	// (1.0 = pure relevance, 0.0 = pure diversity, default: 0.6).
	MMRLambda float64 `yaml:"mmr_lambda"`
}

// StorageConfig configures local persistence paths.
type StorageConfig struct {
	// DataDir is the root directory for indexes and the document registry.
	DataDir string `yaml:"data_dir"`

	// ObjectRoot is the root directory for the object store.
	ObjectRoot string `yaml:"object_root"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// DefaultDataDir returns the default data directory (~/.docsift).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsift")
	}
	return filepath.Join(home, ".docsift")
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Pipeline: PipelineConfig{
			MaxFileSizeMB: 50,
			MinTextChars:  200,
			EmbedWorkers:  4,
			StageTimeout:  60 * time.Second,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     400,
			OverlapTokens: 50,
			PreservePages: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 0,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Search: SearchConfig{
			RRFConstant:     60,
			TopK:            10,
			OverfetchFactor: 2,
			MMRLambda:       0.6,
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			ObjectRoot: filepath.Join(dataDir, "objects"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (optional) and applies environment
// variable overrides. An empty path loads defaults + env only.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies DOCSIFT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSIFT_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCSIFT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.ObjectRoot = filepath.Join(v, "objects")
	}
	if v := os.Getenv("DOCSIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCSIFT_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("DOCSIFT_CHUNK_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.MaxTokens = n
		}
	}
	if v := os.Getenv("DOCSIFT_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.OverlapTokens = n
		}
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 {
		return fmt.Errorf("chunking.overlap_tokens must be non-negative, got %d", c.Chunking.OverlapTokens)
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens (%d) must be less than max_tokens (%d)",
			c.Chunking.OverlapTokens, c.Chunking.MaxTokens)
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		return fmt.Errorf("pipeline.max_file_size_mb must be positive, got %d", c.Pipeline.MaxFileSizeMB)
	}
	if c.Pipeline.EmbedWorkers <= 0 {
		return fmt.Errorf("pipeline.embed_workers must be positive, got %d", c.Pipeline.EmbedWorkers)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be at least 1, got %d", c.Search.OverfetchFactor)
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("search.mmr_lambda must be in [0,1], got %f", c.Search.MMRLambda)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
