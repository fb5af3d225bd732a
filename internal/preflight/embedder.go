package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docsift/docsift/internal/config"
)

// embedderProbeTimeout bounds the provider reachability probe so doctor
// stays responsive when the host is down.
const embedderProbeTimeout = 5 * time.Second

// CheckEmbedder checks that the configured embedding provider is reachable
// and the configured model is available. Non-critical: ingestion can fall
// back to the static provider with --offline.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	if cfg.Embeddings.Provider == "static" {
		result.Status = StatusPass
		result.Message = "static provider (no external calls)"
		return result
	}

	models, err := listOllamaModels(ctx, cfg.Embeddings.OllamaHost)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama unreachable at %s", cfg.Embeddings.OllamaHost)
		result.Details = fmt.Sprintf("%v (use --offline for static embeddings)", err)
		return result
	}

	want := cfg.Embeddings.Model
	for _, name := range models {
		// Ollama reports tagged names like "nomic-embed-text:latest".
		if name == want || strings.TrimSuffix(name, ":latest") == want || strings.SplitN(name, ":", 2)[0] == want {
			result.Status = StatusPass
			result.Message = fmt.Sprintf("model %q available at %s", want, cfg.Embeddings.OllamaHost)
			return result
		}
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("model %q not found", want)
	result.Details = fmt.Sprintf("Run 'ollama pull %s' to download it", want)
	return result
}

// listOllamaModels returns the model names reported by the Ollama tags API.
func listOllamaModels(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	url := strings.TrimSuffix(host, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
