// Package graph defines the story graph: nodes, the choices that connect
// them, and the input a choice may demand from the player.
package graph

import (
	"fmt"
	"strings"

	"github.com/louisbranch/mythos/internal/services/story/profile"
)

// NodeKind distinguishes authored nodes whose choices are stored from nodes
// whose presented choices are computed at read time.
type NodeKind string

const (
	KindStandard        NodeKind = "standard"
	KindOutfitSelection NodeKind = "outfit_selection"
)

// ParseNodeKind accepts the stored kind names; empty means standard.
func ParseNodeKind(value string) (NodeKind, error) {
	switch NodeKind(strings.TrimSpace(value)) {
	case "", KindStandard:
		return KindStandard, nil
	case KindOutfitSelection:
		return KindOutfitSelection, nil
	default:
		return "", fmt.Errorf("unknown node kind %q", value)
	}
}

// ChoiceRole marks choices with engine-level meaning.
type ChoiceRole string

const (
	RoleStandard ChoiceRole = "standard"
	// RoleRefresh keeps the player on an outfit selection node and redraws its options.
	RoleRefresh ChoiceRole = "refresh"
)

// ParseChoiceRole accepts the stored role names; empty means standard.
func ParseChoiceRole(value string) (ChoiceRole, error) {
	switch ChoiceRole(strings.TrimSpace(value)) {
	case "", RoleStandard:
		return RoleStandard, nil
	case RoleRefresh:
		return RoleRefresh, nil
	default:
		return "", fmt.Errorf("unknown choice role %q", value)
	}
}

// Choice is one selectable action on a node.
type Choice struct {
	ID     int64
	NodeID int64
	Text   string
	// NextNodeID is zero when the choice has no authored successor.
	NextNodeID int64
	Effect     profile.Effect
	Input      *InputRequirement
	Role       ChoiceRole

	// Set only on choices drawn for an outfit selection node.
	ClassID  int64
	OutfitID int64
}

// HasNext reports whether the choice names an explicit successor.
func (c Choice) HasNext() bool {
	return c.NextNodeID > 0
}

// IsRefresh reports whether the choice redraws outfit options.
func (c Choice) IsRefresh() bool {
	return c.Role == RoleRefresh
}

// Placeholder binds a named token in node content to the answer the player
// gave on an earlier node.
type Placeholder struct {
	Name         string
	SourceNodeID int64
	Fallback     string
}

// Node is a unit of narrative content plus its available choices.
type Node struct {
	ID      int64
	Title   string
	Content string
	Kind    NodeKind
	// Input is set when every choice on the node demands an answer.
	Input        *InputRequirement
	Choices      []Choice
	Placeholders []Placeholder
	IsGenerated  bool
}

// RequiresInput reports whether the node itself demands an answer.
func (n Node) RequiresInput() bool {
	return n.Input != nil && n.Input.Type != InputNone
}

// InputType returns the node-level input type, if any.
func (n Node) InputType() InputType {
	if n.Input == nil {
		return InputNone
	}
	return n.Input.Type
}

// Choice returns the stored choice with the given id.
func (n Node) Choice(id int64) (Choice, bool) {
	for _, choice := range n.Choices {
		if choice.ID == id {
			return choice, true
		}
	}
	return Choice{}, false
}

// RefreshChoices returns the stored refresh choices in order.
func (n Node) RefreshChoices() []Choice {
	var out []Choice
	for _, choice := range n.Choices {
		if choice.IsRefresh() {
			out = append(out, choice)
		}
	}
	return out
}

// SlotChoices returns the stored non-refresh choices. On outfit selection
// nodes these are the slots that drawn outfits are mapped onto.
func (n Node) SlotChoices() []Choice {
	var out []Choice
	for _, choice := range n.Choices {
		if !choice.IsRefresh() {
			out = append(out, choice)
		}
	}
	return out
}

// Draft is a node that has not been persisted yet.
type Draft struct {
	Title        string
	Content      string
	Kind         NodeKind
	Input        *InputRequirement
	Choices      []DraftChoice
	Placeholders []Placeholder
	IsGenerated  bool
}

// DraftChoice is a choice that has not been persisted yet.
type DraftChoice struct {
	Text       string
	NextNodeID int64
	Effect     profile.Effect
	Input      *InputRequirement
	Role       ChoiceRole
}

// Validate checks the fields every persisted node needs.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("node title is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("node content is required")
	}
	if _, err := ParseNodeKind(string(d.Kind)); err != nil {
		return err
	}
	for i, choice := range d.Choices {
		if strings.TrimSpace(choice.Text) == "" {
			return fmt.Errorf("choice %d text is required", i)
		}
		if choice.NextNodeID < 0 {
			return fmt.Errorf("choice %d next node id must not be negative", i)
		}
		if _, err := ParseChoiceRole(string(choice.Role)); err != nil {
			return fmt.Errorf("choice %d: %w", i, err)
		}
	}
	return nil
}
