package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
)

// MinChoices is the fewest choices a generated node may offer.
const MinChoices = 4

type reply struct {
	Title   string        `json:"title"`
	Content string        `json:"content"`
	Choices []replyChoice `json:"choices"`
}

type replyChoice struct {
	Text           string          `json:"text"`
	MetadataImpact json.RawMessage `json:"metadataImpact"`
}

// ParseReply extracts the outermost JSON object from raw and validates it
// into a generated node draft.
func ParseReply(raw string) (graph.Draft, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return graph.Draft{}, errors.New("reply contains no JSON object")
	}

	var r reply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return graph.Draft{}, fmt.Errorf("decode reply: %w", err)
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return graph.Draft{}, errors.New("reply title is missing")
	}
	content := strings.TrimSpace(r.Content)
	if content == "" {
		return graph.Draft{}, errors.New("reply content is missing")
	}
	if len(r.Choices) < MinChoices {
		return graph.Draft{}, fmt.Errorf("reply has %d choices, want at least %d", len(r.Choices), MinChoices)
	}

	draft := graph.Draft{
		Title:       title,
		Content:     content,
		Kind:        graph.KindStandard,
		IsGenerated: true,
		Choices:     make([]graph.DraftChoice, 0, len(r.Choices)),
	}
	for i, c := range r.Choices {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return graph.Draft{}, fmt.Errorf("choice %d text is missing", i)
		}
		impact := bytes.TrimSpace(c.MetadataImpact)
		if len(impact) == 0 || impact[0] != '{' {
			return graph.Draft{}, fmt.Errorf("choice %d metadataImpact must be an object", i)
		}
		var effect profile.Effect
		if err := json.Unmarshal(impact, &effect); err != nil {
			return graph.Draft{}, fmt.Errorf("choice %d metadataImpact: %w", i, err)
		}
		draft.Choices = append(draft.Choices, graph.DraftChoice{
			Text:   text,
			Effect: effect,
			Role:   graph.RoleStandard,
		})
	}
	return draft, nil
}
