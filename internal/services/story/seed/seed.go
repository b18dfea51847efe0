// Package seed loads the authored story graph and class catalog into a fresh
// store.
//
// Manifests reference nodes by key rather than id, so the same document can be
// loaded into any database. Loading is idempotent: a store that already holds
// nodes keeps its graph, and one that already holds classes keeps its catalog.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
	"github.com/louisbranch/mythos/internal/services/story/templating"
)

//go:embed prologue.json
var prologue []byte

// Manifest defines a story graph and class catalog to load.
type Manifest struct {
	Name    string          `json:"name"`
	Nodes   []ManifestNode  `json:"nodes"`
	Classes []ManifestClass `json:"classes"`
}

// ManifestNode defines one authored node. Nodes are inserted in manifest
// order, so the first node becomes the story root.
type ManifestNode struct {
	Key          string                `json:"key"`
	Title        string                `json:"title"`
	Content      string                `json:"content"`
	Kind         string                `json:"kind,omitempty"`
	Input        *ManifestInput        `json:"input,omitempty"`
	Placeholders []ManifestPlaceholder `json:"placeholders,omitempty"`
	Choices      []ManifestChoice      `json:"choices"`
}

// ManifestInput defines an answer a node or choice demands.
type ManifestInput struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// ManifestPlaceholder binds a content token to an earlier node's answer.
type ManifestPlaceholder struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Fallback string `json:"fallback,omitempty"`
}

// ManifestChoice defines one choice. An empty Next leaves the choice without
// an authored successor.
type ManifestChoice struct {
	Text   string         `json:"text"`
	Next   string         `json:"next,omitempty"`
	Role   string         `json:"role,omitempty"`
	Effect map[string]any `json:"effect,omitempty"`
	Input  *ManifestInput `json:"input,omitempty"`
}

// ManifestClass defines one class with its wardrobe and starting kit.
type ManifestClass struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Bonuses     map[string]int   `json:"bonuses,omitempty"`
	Outfits     []ManifestOutfit `json:"outfits"`
	// Equipment is a comma separated list; commas inside parentheses stay
	// with their item.
	Equipment string `json:"equipment,omitempty"`
}

// ManifestOutfit defines one weighted outfit option.
type ManifestOutfit struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Report summarizes one load.
type Report struct {
	Nodes        int
	Choices      int
	Classes      int
	GraphSkipped bool
	ClassSkipped bool
}

// Default returns the embedded prologue manifest.
func Default() (Manifest, error) {
	return Decode(bytes.NewReader(prologue))
}

// Decode reads and validates a manifest.
func Decode(r io.Reader) (Manifest, error) {
	var manifest Manifest
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate checks keys are unique, choice targets exist, every placeholder in
// content is bound and placeholder sources precede the node that uses them.
func (m Manifest) Validate() error {
	keys := make(map[string]int, len(m.Nodes))
	placeholderIDs := make(map[string]int64, len(m.Nodes))
	for i, node := range m.Nodes {
		key := strings.TrimSpace(node.Key)
		if key == "" {
			return fmt.Errorf("node %d: key is required", i)
		}
		if _, ok := keys[key]; ok {
			return fmt.Errorf("node %q: duplicate key", key)
		}
		keys[key] = i
		placeholderIDs[key] = int64(i + 1)
	}
	for i, node := range m.Nodes {
		if _, err := node.draft(placeholderIDs); err != nil {
			return fmt.Errorf("node %q: %w", node.Key, err)
		}
		bound := make(map[string]bool, len(node.Placeholders))
		for _, placeholder := range node.Placeholders {
			bound[placeholder.Name] = true
		}
		for _, name := range templating.Names(node.Content) {
			if !bound[name] {
				return fmt.Errorf("node %q: placeholder %q has no binding", node.Key, name)
			}
		}
		for _, placeholder := range node.Placeholders {
			source, ok := keys[placeholder.Source]
			if !ok {
				return fmt.Errorf("node %q: placeholder %q: unknown source %q", node.Key, placeholder.Name, placeholder.Source)
			}
			if source >= i {
				return fmt.Errorf("node %q: placeholder %q: source %q must come earlier", node.Key, placeholder.Name, placeholder.Source)
			}
		}
		for j, choice := range node.Choices {
			if choice.Next == "" {
				continue
			}
			if _, ok := keys[choice.Next]; !ok {
				return fmt.Errorf("node %q: choice %d: unknown next %q", node.Key, j, choice.Next)
			}
		}
	}
	names := make(map[string]struct{}, len(m.Classes))
	for i, class := range m.Classes {
		if _, err := class.record(); err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		lower := strings.ToLower(strings.TrimSpace(class.Name))
		if _, ok := names[lower]; ok {
			return fmt.Errorf("class %q: duplicate name", class.Name)
		}
		names[lower] = struct{}{}
	}
	return nil
}

// Load writes the manifest into store in one transaction.
func Load(ctx context.Context, store storage.Store, manifest Manifest) (Report, error) {
	if store == nil {
		return Report{}, fmt.Errorf("store is required")
	}
	if err := manifest.Validate(); err != nil {
		return Report{}, err
	}
	var report Report
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		report = Report{}
		nodes, err := tx.CountNodes(ctx)
		if err != nil {
			return fmt.Errorf("count nodes: %w", err)
		}
		if nodes > 0 {
			report.GraphSkipped = true
		} else if err := loadGraph(ctx, tx, manifest.Nodes, &report); err != nil {
			return err
		}

		classes, err := tx.CountClasses(ctx)
		if err != nil {
			return fmt.Errorf("count classes: %w", err)
		}
		if classes > 0 {
			report.ClassSkipped = true
			return nil
		}
		for _, class := range manifest.Classes {
			record, err := class.record()
			if err != nil {
				return fmt.Errorf("class %q: %w", class.Name, err)
			}
			if _, err := tx.CreateClass(ctx, record); err != nil {
				return fmt.Errorf("create class %q: %w", class.Name, err)
			}
			report.Classes++
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// loadGraph inserts every node first, then links choices once all ids are known.
func loadGraph(ctx context.Context, tx storage.Tx, nodes []ManifestNode, report *Report) error {
	ids := make(map[string]int64, len(nodes))
	for _, node := range nodes {
		draft, err := node.draft(ids)
		if err != nil {
			return fmt.Errorf("node %q: %w", node.Key, err)
		}
		draft.Choices = nil
		created, err := tx.InsertNode(ctx, draft)
		if err != nil {
			return fmt.Errorf("insert node %q: %w", node.Key, err)
		}
		ids[node.Key] = created.ID
		report.Nodes++
	}
	for _, node := range nodes {
		if len(node.Choices) == 0 {
			continue
		}
		draft, err := node.draft(ids)
		if err != nil {
			return fmt.Errorf("node %q: %w", node.Key, err)
		}
		added, err := tx.AddChoices(ctx, ids[node.Key], draft.Choices)
		if err != nil {
			return fmt.Errorf("add choices to %q: %w", node.Key, err)
		}
		report.Choices += len(added)
	}
	return nil
}

// draft converts the node using ids for key references. Choice targets that
// ids cannot resolve yet are left at zero.
func (n ManifestNode) draft(ids map[string]int64) (graph.Draft, error) {
	kind, err := graph.ParseNodeKind(n.Kind)
	if err != nil {
		return graph.Draft{}, err
	}
	input, err := n.Input.requirement()
	if err != nil {
		return graph.Draft{}, err
	}
	draft := graph.Draft{
		Title:   n.Title,
		Content: n.Content,
		Kind:    kind,
		Input:   input,
	}
	for _, placeholder := range n.Placeholders {
		source, ok := ids[placeholder.Source]
		if !ok {
			return graph.Draft{}, fmt.Errorf("placeholder %q: unresolved source %q", placeholder.Name, placeholder.Source)
		}
		draft.Placeholders = append(draft.Placeholders, graph.Placeholder{
			Name:         placeholder.Name,
			SourceNodeID: source,
			Fallback:     placeholder.Fallback,
		})
	}
	for i, choice := range n.Choices {
		role, err := graph.ParseChoiceRole(choice.Role)
		if err != nil {
			return graph.Draft{}, fmt.Errorf("choice %d: %w", i, err)
		}
		choiceInput, err := choice.Input.requirement()
		if err != nil {
			return graph.Draft{}, fmt.Errorf("choice %d: %w", i, err)
		}
		draft.Choices = append(draft.Choices, graph.DraftChoice{
			Text:       choice.Text,
			NextNodeID: ids[choice.Next],
			Effect:     profile.ParseEffect(choice.Effect),
			Input:      choiceInput,
			Role:       role,
		})
	}
	if err := draft.Validate(); err != nil {
		return graph.Draft{}, err
	}
	return draft, nil
}

func (in *ManifestInput) requirement() (*graph.InputRequirement, error) {
	if in == nil {
		return nil, nil
	}
	inputType, err := graph.ParseInputType(in.Type)
	if err != nil {
		return nil, err
	}
	if inputType == graph.InputNone {
		return nil, nil
	}
	return &graph.InputRequirement{Type: inputType, Prompt: in.Prompt}, nil
}

func (c ManifestClass) record() (storage.Class, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return storage.Class{}, fmt.Errorf("class name is required")
	}
	class := storage.Class{
		Name:        name,
		Description: strings.TrimSpace(c.Description),
		Equipment:   ParseEquipment(c.Equipment),
	}
	for key, bonus := range c.Bonuses {
		attr := profile.Attribute(key)
		if profile.GroupOf(attr) != profile.GroupCore {
			return storage.Class{}, fmt.Errorf("class %q: bonus %q is not a core attribute", name, key)
		}
		if class.Bonuses == nil {
			class.Bonuses = make(map[profile.Attribute]int)
		}
		class.Bonuses[attr] = bonus
	}
	for i, option := range c.Outfits {
		if strings.TrimSpace(option.Description) == "" {
			return storage.Class{}, fmt.Errorf("class %q: outfit %d description is required", name, i)
		}
		if option.Weight < 0 {
			return storage.Class{}, fmt.Errorf("class %q: outfit %d weight must not be negative", name, i)
		}
		class.Outfits = append(class.Outfits, storage.Outfit{
			Description: strings.TrimSpace(option.Description),
			Weight:      option.Weight,
		})
	}
	return class, nil
}

// ParseEquipment splits a comma separated equipment list, keeping commas
// inside parentheses with their item.
func ParseEquipment(value string) []string {
	var (
		items   []string
		current strings.Builder
		depth   int
	)
	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			items = append(items, item)
		}
		current.Reset()
	}
	for _, r := range value {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case r == ',' && depth == 0:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return items
}
