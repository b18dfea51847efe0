package httpapi

import (
	"time"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

type choiceRequest struct {
	CharacterID  int64  `json:"characterId"`
	ChoiceID     int64  `json:"choiceId"`
	InputValue   string `json:"inputValue,omitempty"`
	Password     string `json:"password,omitempty"`
	ClassID      int64  `json:"classId,omitempty"`
	SubmissionID string `json:"submissionId,omitempty"`
}

func (r choiceRequest) submission(input string) progression.Submission {
	return progression.Submission{
		CharacterID:  r.CharacterID,
		ChoiceID:     r.ChoiceID,
		InputValue:   input,
		ClassID:      r.ClassID,
		SubmissionID: r.SubmissionID,
	}
}

type createCharacterRequest struct {
	Name string `json:"name"`
}

type choicePayload struct {
	ID            int64          `json:"id"`
	Text          string         `json:"text"`
	NextNodeID    int64          `json:"nextNodeId,omitempty"`
	Role          string         `json:"role"`
	Effect        profile.Effect `json:"metadataImpact"`
	RequiresInput bool           `json:"requiresInput"`
	InputType     string         `json:"inputType,omitempty"`
	InputPrompt   string         `json:"inputPrompt,omitempty"`
	ClassID       int64          `json:"classId,omitempty"`
	OutfitID      int64          `json:"outfitId,omitempty"`
}

type nodePayload struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	NodeType      string          `json:"nodeType"`
	IsGenerated   bool            `json:"isGenerated"`
	RequiresInput bool            `json:"requiresInput"`
	InputType     string          `json:"inputType,omitempty"`
	InputPrompt   string          `json:"inputPrompt,omitempty"`
	Choices       []choicePayload `json:"choices"`
}

func toNodePayload(node graph.Node) nodePayload {
	out := nodePayload{
		ID:            node.ID,
		Title:         node.Title,
		Content:       node.Content,
		NodeType:      string(node.Kind),
		IsGenerated:   node.IsGenerated,
		RequiresInput: node.RequiresInput(),
		Choices:       make([]choicePayload, 0, len(node.Choices)),
	}
	if node.Input != nil {
		out.InputType = string(node.Input.Type)
		out.InputPrompt = node.Input.Prompt
	}
	for _, choice := range node.Choices {
		item := choicePayload{
			ID:         choice.ID,
			Text:       choice.Text,
			NextNodeID: choice.NextNodeID,
			Role:       string(choice.Role),
			Effect:     choice.Effect,
			ClassID:    choice.ClassID,
			OutfitID:   choice.OutfitID,
		}
		if item.Role == "" {
			item.Role = string(graph.RoleStandard)
		}
		if req := graph.EffectiveInput(node, choice); req != nil {
			item.RequiresInput = true
			item.InputType = string(req.Type)
			item.InputPrompt = req.Prompt
		}
		out.Choices = append(out.Choices, item)
	}
	return out
}

type characterPayload struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Experience int        `json:"experience"`
	ClassID    int64      `json:"classId,omitempty"`
	IsDead     bool       `json:"isDead"`
	DiedAt     *time.Time `json:"diedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toCharacterPayload(character storage.Character) characterPayload {
	out := characterPayload{
		ID:         character.ID,
		Name:       character.Name,
		Level:      character.Level,
		Experience: character.Experience,
		ClassID:    character.ClassID,
		IsDead:     character.IsDead,
		CreatedAt:  character.CreatedAt,
	}
	if character.IsDead && !character.DiedAt.IsZero() {
		diedAt := character.DiedAt
		out.DiedAt = &diedAt
	}
	return out
}

type historyPayload struct {
	ChoiceID     int64     `json:"choiceId"`
	NodeID       int64     `json:"nodeId"`
	ChoiceText   string    `json:"choiceText,omitempty"`
	InputValue   string    `json:"inputValue,omitempty"`
	SubmissionID string    `json:"submissionId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type progressPayload struct {
	CharacterID   int64            `json:"characterId"`
	CurrentNodeID int64            `json:"currentNodeId"`
	ChoiceHistory []historyPayload `json:"choiceHistory"`
	Metadata      map[string]any   `json:"metadata"`
	Version       int64            `json:"version"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Character     characterPayload `json:"character"`
	CurrentNode   nodePayload      `json:"currentNode"`
	Profile       profilePayload   `json:"profile"`
}

func toProgressPayload(view progression.View) progressPayload {
	history := make([]historyPayload, 0, len(view.Progress.History))
	for _, entry := range view.Progress.History {
		history = append(history, historyPayload{
			ChoiceID:     entry.ChoiceID,
			NodeID:       entry.NodeID,
			ChoiceText:   entry.ChoiceText,
			InputValue:   entry.InputValue,
			SubmissionID: entry.SubmissionID,
			Timestamp:    entry.Timestamp,
		})
	}
	metadata := view.Progress.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return progressPayload{
		CharacterID:   view.Progress.CharacterID,
		CurrentNodeID: view.Progress.CurrentNodeID,
		ChoiceHistory: history,
		Metadata:      metadata,
		Version:       view.Progress.Version,
		UpdatedAt:     view.Progress.UpdatedAt,
		Character:     toCharacterPayload(view.Character),
		CurrentNode:   toNodePayload(view.Node),
		Profile:       toProfilePayload(view.Profile),
	}
}

type choiceResultPayload struct {
	progressPayload
	Decision string `json:"decision"`
	Died     bool   `json:"died"`
	Replayed bool   `json:"replayed"`
}

type alignmentPayload struct {
	GoodEvil   int    `json:"goodEvil"`
	OrderChaos int    `json:"orderChaos"`
	Label      string `json:"label"`
}

type preferencesPayload struct {
	Combat      int `json:"combat"`
	Exploration int `json:"exploration"`
	Social      int `json:"social"`
	Puzzle      int `json:"puzzle"`
}

type profilePayload struct {
	CharacterID      int64                     `json:"characterId"`
	Attributes       map[profile.Attribute]int `json:"attributes"`
	Experience       map[profile.Attribute]int `json:"experience"`
	Alignment        alignmentPayload          `json:"alignment"`
	Preferences      preferencesPayload        `json:"preferences"`
	Personality      map[profile.Attribute]int `json:"personality"`
	AdditionalTraits map[string]any            `json:"additionalTraits"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

func toAlignmentPayload(p profile.Profile) alignmentPayload {
	return alignmentPayload{
		GoodEvil:   p.GoodEvil,
		OrderChaos: p.OrderChaos,
		Label:      profile.DeriveAlignment(p),
	}
}

func toPreferencesPayload(p profile.Profile) preferencesPayload {
	prefs := p.Preferences()
	return preferencesPayload{
		Combat:      prefs.Combat,
		Exploration: prefs.Exploration,
		Social:      prefs.Social,
		Puzzle:      prefs.Puzzle,
	}
}

func toProfilePayload(p profile.Profile) profilePayload {
	experience := make(map[profile.Attribute]int, len(profile.CoreAttributes))
	for _, attr := range profile.CoreAttributes {
		if exp, ok := profile.ExperienceFor(attr); ok {
			experience[attr], _ = p.Value(exp)
		}
	}
	traits := p.AdditionalTraits
	if traits == nil {
		traits = map[string]any{}
	}
	return profilePayload{
		CharacterID:      p.CharacterID,
		Attributes:       p.Attributes(),
		Experience:       experience,
		Alignment:        toAlignmentPayload(p),
		Preferences:      toPreferencesPayload(p),
		Personality:      p.Personality(),
		AdditionalTraits: traits,
		UpdatedAt:        p.UpdatedAt,
	}
}

type outfitPayload struct {
	ClassID           int64   `json:"classId"`
	ClassName         string  `json:"className"`
	ClassDescription  string  `json:"classDescription,omitempty"`
	OutfitID          int64   `json:"outfitId"`
	OutfitDescription string  `json:"outfitDescription"`
	Weight            float64 `json:"weight"`
	Label             string  `json:"label"`
}

func toOutfitPayloads(options []outfit.Option) []outfitPayload {
	out := make([]outfitPayload, 0, len(options))
	for _, option := range options {
		out = append(out, outfitPayload{
			ClassID:           option.ClassID,
			ClassName:         option.ClassName,
			ClassDescription:  option.ClassDescription,
			OutfitID:          option.OutfitID,
			OutfitDescription: option.OutfitDescription,
			Weight:            option.Weight,
			Label:             option.Label(),
		})
	}
	return out
}
