package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docsift/docsift/internal/config"
)

// NewFromConfig builds the configured embedder, wrapped with an LRU cache.
// Provider "static" never touches the network; "ollama" requires a reachable
// Ollama instance unless health checks are skipped.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()
	case "", "ollama":
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}

	slog.Debug("embedder initialized",
		slog.String("provider", cfg.Provider),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
