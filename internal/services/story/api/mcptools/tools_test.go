package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

type fakeEngine struct {
	node    graph.Node
	view    progression.View
	result  progression.Result
	outfits []outfit.Option
	err     error

	lastSubmission  progression.Submission
	lastOutfitCount int
}

func (f *fakeEngine) GetNode(context.Context, int64, int64) (graph.Node, error) {
	return f.node, f.err
}

func (f *fakeEngine) GetProgress(context.Context, int64) (progression.View, error) {
	return f.view, f.err
}

func (f *fakeEngine) SubmitChoice(_ context.Context, sub progression.Submission) (progression.Result, error) {
	f.lastSubmission = sub
	return f.result, f.err
}

func (f *fakeEngine) RandomOutfits(_ context.Context, n int) ([]outfit.Option, error) {
	f.lastOutfitCount = n
	return f.outfits, f.err
}

type fakeProfiles struct {
	profile profile.Profile
	err     error
}

func (f fakeProfiles) Get(context.Context, int64) (profile.Profile, error) {
	return f.profile, f.err
}

func connect(t *testing.T, engine Engine, profiles Profiles) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	server := NewServer(engine, profiles, "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var output T
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return result
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func dressCode() graph.Node {
	return graph.Node{
		ID:    4,
		Title: "Dress Code",
		Kind:  graph.KindOutfitSelection,
		Choices: []graph.Choice{
			{ID: 20, NodeID: 4, Text: "Ranger: green cloak", NextNodeID: 5, ClassID: 1, Effect: profile.ParseEffect(map[string]any{"dexterity": 1})},
			{ID: 21, NodeID: 4, Text: "Show me more options", Role: graph.RoleRefresh},
		},
	}
}

func TestListToolsRegistersStoryTools(t *testing.T) {
	t.Parallel()

	session := connect(t, &fakeEngine{}, fakeProfiles{})
	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	got := make(map[string]bool)
	for _, tool := range result.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"story_get_node", "story_get_progress", "story_submit_choice", "story_random_outfits", "profile_get"} {
		if !got[name] {
			t.Fatalf("tool %q not registered; have %v", name, got)
		}
	}
}

func TestGetNodeTool(t *testing.T) {
	t.Parallel()

	session := connect(t, &fakeEngine{node: dressCode()}, fakeProfiles{})
	result := callTool(t, session, "story_get_node", map[string]any{"node_id": 4})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	node := decodeStructuredContent[NodeResult](t, result.StructuredContent)
	if node.ID != 4 || node.NodeType != "outfit_selection" {
		t.Fatalf("node = %+v", node)
	}
	if len(node.Choices) != 2 {
		t.Fatalf("choices = %d, want 2", len(node.Choices))
	}
	if node.Choices[0].ClassID != 1 || node.Choices[0].Role != "standard" {
		t.Fatalf("first choice = %+v", node.Choices[0])
	}
	if node.Choices[1].Role != "refresh" || node.Choices[1].Effect != nil {
		t.Fatalf("refresh choice = %+v", node.Choices[1])
	}
}

func TestSubmitChoiceTool(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: progression.Result{
		View: progression.View{
			Character: storage.Character{ID: 3, Name: "Ada"},
			Progress: storage.Progress{
				CharacterID:   3,
				CurrentNodeID: 5,
				Version:       2,
				History:       []storage.HistoryEntry{{ChoiceID: 20, NodeID: 4}},
				Metadata:      map[string]any{"classId": float64(1)},
			},
			Node:    graph.Node{ID: 5, Title: "Your Possessions"},
			Profile: profile.Default(3),
		},
		Decision: progression.NextNodeDecision{Kind: progression.DecisionExplicit, NodeID: 5},
	}}
	session := connect(t, engine, fakeProfiles{})

	result := callTool(t, session, "story_submit_choice", map[string]any{
		"character_id":  3,
		"choice_id":     20,
		"class_id":      1,
		"submission_id": "s-1",
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	want := progression.Submission{CharacterID: 3, ChoiceID: 20, ClassID: 1, SubmissionID: "s-1"}
	if engine.lastSubmission != want {
		t.Fatalf("submission = %+v, want %+v", engine.lastSubmission, want)
	}
	got := decodeStructuredContent[SubmitChoiceResult](t, result.StructuredContent)
	if got.Decision != "explicit" || got.Died || got.Replayed {
		t.Fatalf("result = %+v", got)
	}
	if got.Progress.CurrentNodeID != 5 || got.Progress.Steps != 1 || got.Progress.Alignment != profile.TrueNeutral {
		t.Fatalf("progress = %+v", got.Progress)
	}
	if got.Progress.Node.Title != "Your Possessions" {
		t.Fatalf("node title = %q, want %q", got.Progress.Node.Title, "Your Possessions")
	}
}

func TestSubmitChoiceToolReportsDomainErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "mismatch",
			err:  apperrors.New(apperrors.CodeChoiceNodeMismatch, "choice 9 does not belong to node 4"),
			want: []string{"CHOICE_NODE_MISMATCH"},
		},
		{
			name: "generation unavailable",
			err:  apperrors.New(apperrors.CodeGenerationUnavailable, "provider down"),
			want: []string{"GENERATION_UNAVAILABLE", "(retryable)"},
		},
		{
			name: "unknown",
			err:  fmt.Errorf("boom"),
			want: []string{"boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := connect(t, &fakeEngine{err: tt.err}, fakeProfiles{})
			result := callTool(t, session, "story_submit_choice", map[string]any{"character_id": 1, "choice_id": 9})
			if !result.IsError {
				t.Fatal("expected tool error")
			}
			text := resultText(result)
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Fatalf("error text = %q, want it to contain %q", text, want)
				}
			}
		})
	}
}

func TestRandomOutfitsTool(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{outfits: []outfit.Option{
		{ClassID: 2, ClassName: "Wizard", OutfitID: 3, OutfitDescription: "Starry robe", Weight: 1},
	}}
	session := connect(t, engine, fakeProfiles{})

	result := callTool(t, session, "story_random_outfits", map[string]any{})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	if engine.lastOutfitCount != defaultOutfitDraw {
		t.Fatalf("count = %d, want %d", engine.lastOutfitCount, defaultOutfitDraw)
	}
	got := decodeStructuredContent[RandomOutfitsResult](t, result.StructuredContent)
	if len(got.Outfits) != 1 || got.Outfits[0].ClassName != "Wizard" || got.Outfits[0].Description != "Starry robe" {
		t.Fatalf("outfits = %+v", got.Outfits)
	}

	result = callTool(t, session, "story_random_outfits", map[string]any{"count": 50})
	if !result.IsError {
		t.Fatal("expected error for oversized draw")
	}
}

func TestProfileGetTool(t *testing.T) {
	t.Parallel()

	p := profile.Default(8)
	p = p.Apply(profile.ParseEffect(map[string]any{"strength": 2, "good_evil": 60}))
	session := connect(t, &fakeEngine{}, fakeProfiles{profile: p})

	result := callTool(t, session, "profile_get", map[string]any{"character_id": 8})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	got := decodeStructuredContent[ProfileResult](t, result.StructuredContent)
	if got.CharacterID != 8 {
		t.Fatalf("character id = %d, want 8", got.CharacterID)
	}
	if got.Attributes["strength"] != 12 {
		t.Fatalf("strength = %d, want 12", got.Attributes["strength"])
	}
	if got.Alignment != profile.DeriveAlignment(p) {
		t.Fatalf("alignment = %q, want %q", got.Alignment, profile.DeriveAlignment(p))
	}
	if got.Preferences["combat"] != 50 {
		t.Fatalf("combat preference = %d, want 50", got.Preferences["combat"])
	}
}

func TestProfileGetToolMissingCharacter(t *testing.T) {
	t.Parallel()

	session := connect(t, &fakeEngine{}, fakeProfiles{err: fmt.Errorf("put profile: %w", storage.ErrNotFound)})
	result := callTool(t, session, "profile_get", map[string]any{"character_id": 99})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := resultText(result); !strings.Contains(text, "CHARACTER_NOT_FOUND") || !strings.Contains(text, "99") {
		t.Fatalf("error text = %q", text)
	}
}
