// Package gemini implements models.AIProvider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// Options configures a Provider.
type Options struct {
	APIKey      string
	Model       string
	Temperature float32
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Provider implements models.AIProvider using Gemini.
type Provider struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Provider{client: client, model: opts.Model, temperature: opts.Temperature}, nil
}

func (p *Provider) Name() string { return "gemini" }

// Complete runs one GenerateContent call. No system instruction is sent when
// req.System is empty.
func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	temp := p.temperature
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.User}}}},
		gc,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates in gemini reply", models.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty gemini reply", models.ErrInvalidResponse)
	}
	return b.String(), nil
}

var _ models.AIProvider = (*Provider)(nil)
