// Package openai talks to any backend exposing the OpenAI chat completions
// API. Ollama and vLLM are served through the same client with a custom base
// URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// Options configures a Provider.
type Options struct {
	// Name is reported by Provider.Name, e.g. "openai", "ollama" or "vllm".
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// Provider implements models.AIProvider on the chat completions API.
type Provider struct {
	client      *goopenai.Client
	name        string
	model       string
	temperature float32
}

func NewProvider(opts Options) *Provider {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &Provider{
		client:      goopenai.NewClientWithConfig(cfg),
		name:        name,
		model:       opts.Model,
		temperature: opts.Temperature,
	}
}

func (p *Provider) Name() string { return p.name }

// Complete sends one chat completion. The system message is omitted when
// req.System is empty.
func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.User})

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in %s reply", models.ErrInvalidResponse, p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps client errors to the provider sentinels.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
