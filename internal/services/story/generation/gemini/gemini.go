// Package gemini completes generation requests with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/louisbranch/mythos/internal/services/story/generation"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-1.5-flash"

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// ClientOptions are appended after the API key option.
	ClientOptions []option.ClientOption
}

// Provider is a generation.Provider backed by Gemini.
type Provider struct {
	client *genai.Client
	model  string
}

var _ generation.Provider = (*Provider)(nil)

// New connects a Gemini client. Close releases it.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Close releases the client connection.
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Name implements generation.Provider.
func (p *Provider) Name() string {
	return "gemini"
}

// Complete asks the model for a JSON reply.
func (p *Provider) Complete(ctx context.Context, req generation.Request) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.ResponseMIMEType = "application/json"
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	return b.String()
}
