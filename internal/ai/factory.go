package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/threatlens/internal/ai/gemini"
	"github.com/kiranshivaraju/threatlens/internal/ai/openai"
	"github.com/kiranshivaraju/threatlens/internal/config"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return openai.NewProvider(openai.Options{
			Name:        "ollama",
			BaseURL:     compatBaseURL(cfg.Ollama.BaseURL),
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Temperature,
		}), nil
	case "vllm":
		return openai.NewProvider(openai.Options{
			Name:        "vllm",
			BaseURL:     compatBaseURL(cfg.VLLM.BaseURL),
			Model:       cfg.VLLM.Model,
			Temperature: cfg.Temperature,
		}), nil
	case "openai":
		return openai.NewProvider(openai.Options{
			Name:        "openai",
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.Temperature,
		}), nil
	case "gemini":
		return gemini.NewProvider(ctx, gemini.Options{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Temperature,
			BaseURL:     cfg.Gemini.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, gemini", cfg.Provider)
	}
}

// compatBaseURL points at the OpenAI-compatible /v1 prefix that Ollama and
// vLLM serve.
func compatBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}
