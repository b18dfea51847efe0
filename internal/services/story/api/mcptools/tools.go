// Package mcptools exposes the story engine to agent hosts as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

const (
	serverName        = "mythos-story"
	defaultOutfitDraw = 4
	maxOutfitDraw     = 20
)

// Engine is the story surface the tools call.
type Engine interface {
	GetNode(ctx context.Context, nodeID, characterID int64) (graph.Node, error)
	GetProgress(ctx context.Context, characterID int64) (progression.View, error)
	SubmitChoice(ctx context.Context, sub progression.Submission) (progression.Result, error)
	RandomOutfits(ctx context.Context, n int) ([]outfit.Option, error)
}

// Profiles reads character profiles.
type Profiles interface {
	Get(ctx context.Context, characterID int64) (profile.Profile, error)
}

// NewServer builds an MCP server with every story tool registered.
func NewServer(engine Engine, profiles Profiles, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	Register(server, engine, profiles)
	return server
}

// Register adds the story tools to server.
func Register(server *mcp.Server, engine Engine, profiles Profiles) {
	mcp.AddTool(server, GetNodeTool(), GetNodeHandler(engine))
	mcp.AddTool(server, GetProgressTool(), GetProgressHandler(engine))
	mcp.AddTool(server, SubmitChoiceTool(), SubmitChoiceHandler(engine))
	mcp.AddTool(server, RandomOutfitsTool(), RandomOutfitsHandler(engine))
	mcp.AddTool(server, ProfileGetTool(), ProfileGetHandler(profiles))
}

// GetNodeInput selects a node and optionally the character reading it.
type GetNodeInput struct {
	NodeID      int64 `json:"node_id" jsonschema:"story node id"`
	CharacterID int64 `json:"character_id,omitempty" jsonschema:"character whose answers fill templated content"`
}

// ChoiceResult is one presented choice.
type ChoiceResult struct {
	ID         int64          `json:"id"`
	Text       string         `json:"text"`
	NextNodeID int64          `json:"next_node_id,omitempty"`
	Role       string         `json:"role"`
	InputType  string         `json:"input_type,omitempty" jsonschema:"answer format the choice demands"`
	ClassID    int64          `json:"class_id,omitempty" jsonschema:"class granted by an outfit choice"`
	Effect     map[string]any `json:"effect,omitempty"`
}

// NodeResult is a node as presented to a character.
type NodeResult struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	NodeType    string         `json:"node_type"`
	IsGenerated bool           `json:"is_generated"`
	Choices     []ChoiceResult `json:"choices"`
}

func nodeResult(node graph.Node) NodeResult {
	out := NodeResult{
		ID:          node.ID,
		Title:       node.Title,
		Content:     node.Content,
		NodeType:    string(node.Kind),
		IsGenerated: node.IsGenerated,
		Choices:     make([]ChoiceResult, 0, len(node.Choices)),
	}
	for _, choice := range node.Choices {
		item := ChoiceResult{
			ID:         choice.ID,
			Text:       choice.Text,
			NextNodeID: choice.NextNodeID,
			Role:       string(choice.Role),
			ClassID:    choice.ClassID,
		}
		if item.Role == "" {
			item.Role = string(graph.RoleStandard)
		}
		if req := graph.EffectiveInput(node, choice); req != nil {
			item.InputType = string(req.Type)
		}
		if !choice.Effect.IsEmpty() {
			item.Effect = choice.Effect.Raw()
		}
		out.Choices = append(out.Choices, item)
	}
	return out
}

// GetNodeTool defines the node lookup tool.
func GetNodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "story_get_node",
		Description: "Returns a story node with its presented choices",
	}
}

// GetNodeHandler reads one node.
func GetNodeHandler(engine Engine) mcp.ToolHandlerFor[GetNodeInput, NodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetNodeInput) (*mcp.CallToolResult, NodeResult, error) {
		node, err := engine.GetNode(ctx, input.NodeID, input.CharacterID)
		if err != nil {
			return nil, NodeResult{}, toolError(err)
		}
		return nil, nodeResult(node), nil
	}
}

// CharacterInput selects a character.
type CharacterInput struct {
	CharacterID int64 `json:"character_id" jsonschema:"character id"`
}

// ProgressResult is a character's position in the story.
type ProgressResult struct {
	CharacterID   int64          `json:"character_id"`
	Name          string         `json:"name"`
	IsDead        bool           `json:"is_dead"`
	CurrentNodeID int64          `json:"current_node_id"`
	Steps         int            `json:"steps" jsonschema:"number of resolved choices"`
	Version       int64          `json:"version"`
	Alignment     string         `json:"alignment"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Node          NodeResult     `json:"node"`
}

func progressResult(view progression.View) ProgressResult {
	return ProgressResult{
		CharacterID:   view.Character.ID,
		Name:          view.Character.Name,
		IsDead:        view.Character.IsDead,
		CurrentNodeID: view.Progress.CurrentNodeID,
		Steps:         len(view.Progress.History),
		Version:       view.Progress.Version,
		Alignment:     profile.DeriveAlignment(view.Profile),
		Metadata:      view.Progress.Metadata,
		Node:          nodeResult(view.Node),
	}
}

// GetProgressTool defines the progress lookup tool.
func GetProgressTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "story_get_progress",
		Description: "Returns a character's current node and progression state",
	}
}

// GetProgressHandler reads a character's progress.
func GetProgressHandler(engine Engine) mcp.ToolHandlerFor[CharacterInput, ProgressResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterInput) (*mcp.CallToolResult, ProgressResult, error) {
		view, err := engine.GetProgress(ctx, input.CharacterID)
		if err != nil {
			return nil, ProgressResult{}, toolError(err)
		}
		return nil, progressResult(view), nil
	}
}

// SubmitChoiceInput resolves one choice for a character.
type SubmitChoiceInput struct {
	CharacterID  int64  `json:"character_id" jsonschema:"character making the choice"`
	ChoiceID     int64  `json:"choice_id" jsonschema:"choice on the character's current node"`
	InputValue   string `json:"input_value,omitempty" jsonschema:"answer for choices that demand input"`
	ClassID      int64  `json:"class_id,omitempty" jsonschema:"class of the chosen outfit"`
	SubmissionID string `json:"submission_id,omitempty" jsonschema:"idempotency key; resubmitting it changes nothing"`
}

// SubmitChoiceResult reports the transition taken.
type SubmitChoiceResult struct {
	Decision string         `json:"decision"`
	Died     bool           `json:"died"`
	Replayed bool           `json:"replayed"`
	Progress ProgressResult `json:"progress"`
}

// SubmitChoiceTool defines the choice submission tool.
func SubmitChoiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "story_submit_choice",
		Description: "Submits a choice for a character and returns the resulting progress",
	}
}

// SubmitChoiceHandler resolves one choice.
func SubmitChoiceHandler(engine Engine) mcp.ToolHandlerFor[SubmitChoiceInput, SubmitChoiceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SubmitChoiceInput) (*mcp.CallToolResult, SubmitChoiceResult, error) {
		result, err := engine.SubmitChoice(ctx, progression.Submission{
			CharacterID:  input.CharacterID,
			ChoiceID:     input.ChoiceID,
			InputValue:   input.InputValue,
			ClassID:      input.ClassID,
			SubmissionID: input.SubmissionID,
		})
		if err != nil {
			return nil, SubmitChoiceResult{}, toolError(err)
		}
		return nil, SubmitChoiceResult{
			Decision: result.Decision.Kind.String(),
			Died:     result.Died,
			Replayed: result.Replayed,
			Progress: progressResult(result.View),
		}, nil
	}
}

// RandomOutfitsInput sizes an outfit draw.
type RandomOutfitsInput struct {
	Count int `json:"count,omitempty" jsonschema:"number of outfits to draw, default 4"`
}

// OutfitResult is one drawn class outfit.
type OutfitResult struct {
	ClassID     int64  `json:"class_id"`
	ClassName   string `json:"class_name"`
	OutfitID    int64  `json:"outfit_id"`
	Description string `json:"description"`
}

// RandomOutfitsResult lists drawn outfits.
type RandomOutfitsResult struct {
	Outfits []OutfitResult `json:"outfits"`
}

// RandomOutfitsTool defines the outfit draw tool.
func RandomOutfitsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "story_random_outfits",
		Description: "Draws weighted random class outfits",
	}
}

// RandomOutfitsHandler draws outfits.
func RandomOutfitsHandler(engine Engine) mcp.ToolHandlerFor[RandomOutfitsInput, RandomOutfitsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RandomOutfitsInput) (*mcp.CallToolResult, RandomOutfitsResult, error) {
		count := input.Count
		if count == 0 {
			count = defaultOutfitDraw
		}
		if count < 0 || count > maxOutfitDraw {
			return nil, RandomOutfitsResult{}, fmt.Errorf("count must be between 1 and %d", maxOutfitDraw)
		}
		options, err := engine.RandomOutfits(ctx, count)
		if err != nil {
			return nil, RandomOutfitsResult{}, toolError(err)
		}
		out := RandomOutfitsResult{Outfits: make([]OutfitResult, 0, len(options))}
		for _, option := range options {
			out.Outfits = append(out.Outfits, OutfitResult{
				ClassID:     option.ClassID,
				ClassName:   option.ClassName,
				OutfitID:    option.OutfitID,
				Description: option.OutfitDescription,
			})
		}
		return nil, out, nil
	}
}

// ProfileResult is a character's accumulated traits.
type ProfileResult struct {
	CharacterID      int64          `json:"character_id"`
	Attributes       map[string]int `json:"attributes"`
	Alignment        string         `json:"alignment"`
	Preferences      map[string]int `json:"preferences"`
	Personality      map[string]int `json:"personality"`
	AdditionalTraits map[string]any `json:"additional_traits,omitempty"`
}

// ProfileGetTool defines the profile lookup tool.
func ProfileGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "profile_get",
		Description: "Returns a character's attributes, alignment and narrative preferences",
	}
}

// ProfileGetHandler reads a profile.
func ProfileGetHandler(profiles Profiles) mcp.ToolHandlerFor[CharacterInput, ProfileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterInput) (*mcp.CallToolResult, ProfileResult, error) {
		p, err := profiles.Get(ctx, input.CharacterID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				err = apperrors.WithMetadata(apperrors.CodeCharacterNotFound, "character not found",
					map[string]string{"CharacterID": fmt.Sprint(input.CharacterID)})
			}
			return nil, ProfileResult{}, toolError(err)
		}
		prefs := p.Preferences()
		out := ProfileResult{
			CharacterID: p.CharacterID,
			Attributes:  make(map[string]int, len(profile.CoreAttributes)),
			Alignment:   profile.DeriveAlignment(p),
			Preferences: map[string]int{
				"combat":      prefs.Combat,
				"exploration": prefs.Exploration,
				"social":      prefs.Social,
				"puzzle":      prefs.Puzzle,
			},
			Personality:      make(map[string]int),
			AdditionalTraits: p.AdditionalTraits,
		}
		for attr, value := range p.Attributes() {
			out.Attributes[string(attr)] = value
		}
		for attr, value := range p.Personality() {
			out.Personality[string(attr)] = value
		}
		return nil, out, nil
	}
}

// toolError renders a coded error as "CODE: message" in the base locale.
func toolError(err error) error {
	desc := apperrors.Describe(err, nil)
	if desc.Code == apperrors.CodeUnknown {
		return err
	}
	message := fmt.Sprintf("%s: %s", desc.Code, desc.Message)
	if desc.Retryable {
		message += " (retryable)"
	}
	return errors.New(message)
}
