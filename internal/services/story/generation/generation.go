// Package generation synthesizes new story nodes through an external
// text-generation provider when the authored graph runs out.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/platform/timeouts"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
)

const tracerName = "github.com/louisbranch/mythos/internal/services/story/generation"

// Default sampling parameters used when Options leaves them zero.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTopP        = 0.95
)

// Request is one provider completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Provider completes a prompt and returns the raw reply text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Character is the character summary included in prompts.
type Character struct {
	ID         int64
	Name       string
	Level      int
	Experience int
	ClassName  string
	Equipment  []string
}

// Step is one visited node and the choice the player took on it.
type Step struct {
	Title      string
	Content    string
	ChoiceText string
}

// Context is everything the bridge tells the provider about the player.
type Context struct {
	Character Character
	Profile   profile.Profile
	// Recent holds the most recent steps, oldest first.
	Recent   []Step
	Metadata map[string]any
	// Examples are authored nodes shown as style references.
	Examples []graph.Node
}

// Options tunes the bridge.
type Options struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	TopP        float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = timeouts.Generation
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.TopP <= 0 {
		o.TopP = DefaultTopP
	}
	return o
}

// Bridge turns a player context into a validated node draft.
type Bridge struct {
	provider Provider
	opts     Options
	metrics  *metrics.Metrics
}

// NewBridge builds a Bridge over provider. m may be nil.
func NewBridge(provider Provider, opts Options, m *metrics.Metrics) *Bridge {
	return &Bridge{provider: provider, opts: opts.withDefaults(), metrics: m}
}

// Provider returns the configured provider name.
func (b *Bridge) Provider() string {
	if b == nil || b.provider == nil {
		return ""
	}
	return b.provider.Name()
}

// Generate asks the provider for a new node. The draft is not persisted;
// it carries IsGenerated and choices without successors.
//
// Provider failures and timeouts are GENERATION_UNAVAILABLE; replies that
// do not have the required shape are GENERATION_PARSE_ERROR.
func (b *Bridge) Generate(ctx context.Context, gctx Context) (graph.Draft, error) {
	if b == nil || b.provider == nil {
		return graph.Draft{}, apperrors.New(apperrors.CodeGenerationUnavailable, "generation provider is not configured")
	}
	name := b.provider.Name()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "story.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.provider", name),
		attribute.Int64("character.id", gctx.Character.ID),
	)

	callCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	req := Request{
		System:      SystemPrompt,
		User:        BuildPrompt(gctx),
		Temperature: b.opts.Temperature,
		MaxTokens:   b.opts.MaxTokens,
		TopP:        b.opts.TopP,
	}

	started := time.Now()
	reply, err := b.provider.Complete(callCtx, req)
	elapsed := time.Since(started)
	if err != nil {
		b.metrics.GenerationAttempt(name, metrics.ResultUnavailable, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		message := fmt.Sprintf("%s completion failed", name)
		if errors.Is(err, context.DeadlineExceeded) {
			message = fmt.Sprintf("%s completion timed out after %s", name, b.opts.Timeout)
		}
		return graph.Draft{}, apperrors.WrapWithMetadata(apperrors.CodeGenerationUnavailable, message,
			map[string]string{"Provider": name}, err)
	}

	draft, err := ParseReply(reply)
	if err != nil {
		b.metrics.GenerationAttempt(name, metrics.ResultParseError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed reply")
		return graph.Draft{}, apperrors.WrapWithMetadata(apperrors.CodeGenerationParseError,
			fmt.Sprintf("%s reply is malformed", name),
			map[string]string{"Provider": name, "Reason": err.Error()}, err)
	}

	b.metrics.GenerationAttempt(name, metrics.ResultSuccess, elapsed)
	span.SetAttributes(attribute.Int("generation.choices", len(draft.Choices)))
	return draft, nil
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
