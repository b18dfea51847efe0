// Package openai completes generation requests against an OpenAI-compatible
// chat completions endpoint, including local servers such as LM Studio.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/louisbranch/mythos/internal/services/story/generation"
)

const (
	// DefaultBaseURL is the LM Studio local server address.
	DefaultBaseURL = "http://localhost:1234/v1"
	// DefaultModel is the model name LM Studio answers to for the loaded model.
	DefaultModel = "local-model"
	// localAPIKey is sent when no key is configured; local servers ignore it.
	localAPIKey = "lm-studio"
)

// Config configures the chat completions client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Provider is a generation.Provider backed by chat completions.
type Provider struct {
	client openaisdk.Client
	model  string
}

var _ generation.Provider = (*Provider)(nil)

// New builds a Provider from cfg.
func New(cfg Config) *Provider {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = localAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		// The bridge owns the deadline; retries would overrun it.
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Provider{client: openaisdk.NewClient(opts...), model: model}
}

// Name implements generation.Provider.
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends the system and user messages and returns the first choice's text.
func (p *Provider) Complete(ctx context.Context, req generation.Request) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(req.System),
			openaisdk.UserMessage(req.User),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openaisdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		params.TopP = openaisdk.Float(req.TopP)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	return content, nil
}
