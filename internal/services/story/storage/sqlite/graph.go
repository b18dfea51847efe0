package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

const choiceColumns = `id, node_id, text, next_node_id, role, effect_json, input_type, input_prompt`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetNode returns a node with its stored choices and placeholders.
func (q *queries) GetNode(ctx context.Context, nodeID int64) (graph.Node, error) {
	if err := q.ready(ctx); err != nil {
		return graph.Node{}, err
	}
	if nodeID <= 0 {
		return graph.Node{}, storage.ErrNotFound
	}

	var (
		node        graph.Node
		kind        string
		inputType   string
		inputPrompt string
		generated   bool
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, title, content, kind, input_type, input_prompt, is_generated
		 FROM story_nodes WHERE id = ?`, nodeID,
	).Scan(&node.ID, &node.Title, &node.Content, &kind, &inputType, &inputPrompt, &generated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Node{}, storage.ErrNotFound
		}
		return graph.Node{}, fmt.Errorf("get node %d: %w", nodeID, err)
	}
	node.IsGenerated = generated
	if node.Kind, err = graph.ParseNodeKind(kind); err != nil {
		return graph.Node{}, fmt.Errorf("node %d: %w", nodeID, err)
	}
	if node.Input, err = inputFromColumns(inputType, inputPrompt); err != nil {
		return graph.Node{}, fmt.Errorf("node %d: %w", nodeID, err)
	}

	if node.Choices, err = q.listChoices(ctx, nodeID); err != nil {
		return graph.Node{}, err
	}
	if node.Placeholders, err = q.listPlaceholders(ctx, nodeID); err != nil {
		return graph.Node{}, err
	}
	return node, nil
}

func (q *queries) listChoices(ctx context.Context, nodeID int64) ([]graph.Choice, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+choiceColumns+` FROM story_choices WHERE node_id = ? ORDER BY position, id`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list choices for node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var choices []graph.Choice
	for rows.Next() {
		choice, err := scanChoice(rows)
		if err != nil {
			return nil, err
		}
		choices = append(choices, choice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate choices for node %d: %w", nodeID, err)
	}
	return choices, nil
}

func (q *queries) listPlaceholders(ctx context.Context, nodeID int64) ([]graph.Placeholder, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT name, source_node_id, fallback FROM node_placeholders WHERE node_id = ? ORDER BY name`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list placeholders for node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var placeholders []graph.Placeholder
	for rows.Next() {
		var p graph.Placeholder
		if err := rows.Scan(&p.Name, &p.SourceNodeID, &p.Fallback); err != nil {
			return nil, fmt.Errorf("scan placeholder: %w", err)
		}
		placeholders = append(placeholders, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placeholders for node %d: %w", nodeID, err)
	}
	return placeholders, nil
}

func scanChoice(row rowScanner) (graph.Choice, error) {
	var (
		choice      graph.Choice
		next        sql.NullInt64
		role        string
		effectJSON  string
		inputType   string
		inputPrompt string
	)
	if err := row.Scan(&choice.ID, &choice.NodeID, &choice.Text, &next, &role, &effectJSON, &inputType, &inputPrompt); err != nil {
		return graph.Choice{}, err
	}
	if next.Valid {
		choice.NextNodeID = next.Int64
	}
	var err error
	if choice.Role, err = graph.ParseChoiceRole(role); err != nil {
		return graph.Choice{}, fmt.Errorf("choice %d: %w", choice.ID, err)
	}
	if err := json.Unmarshal([]byte(effectJSON), &choice.Effect); err != nil {
		return graph.Choice{}, fmt.Errorf("decode choice %d effect: %w", choice.ID, err)
	}
	if choice.Input, err = inputFromColumns(inputType, inputPrompt); err != nil {
		return graph.Choice{}, fmt.Errorf("choice %d: %w", choice.ID, err)
	}
	return choice, nil
}

func inputFromColumns(inputType, prompt string) (*graph.InputRequirement, error) {
	parsed, err := graph.ParseInputType(inputType)
	if err != nil {
		return nil, err
	}
	if parsed == graph.InputNone {
		return nil, nil
	}
	return &graph.InputRequirement{Type: parsed, Prompt: prompt}, nil
}

func inputColumns(req *graph.InputRequirement) (string, string) {
	if req == nil {
		return "", ""
	}
	return string(req.Type), strings.TrimSpace(req.Prompt)
}

// GetChoice returns one stored choice.
func (q *queries) GetChoice(ctx context.Context, choiceID int64) (graph.Choice, error) {
	if err := q.ready(ctx); err != nil {
		return graph.Choice{}, err
	}
	choice, err := scanChoice(q.db.QueryRowContext(ctx,
		`SELECT `+choiceColumns+` FROM story_choices WHERE id = ?`, choiceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Choice{}, storage.ErrNotFound
		}
		return graph.Choice{}, fmt.Errorf("get choice %d: %w", choiceID, err)
	}
	return choice, nil
}

// NodeExists reports whether a node id is stored.
func (q *queries) NodeExists(ctx context.Context, nodeID int64) (bool, error) {
	if err := q.ready(ctx); err != nil {
		return false, err
	}
	var exists bool
	if err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM story_nodes WHERE id = ?)`, nodeID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check node %d: %w", nodeID, err)
	}
	return exists, nil
}

// RootNodeID returns the lowest node id, which is the story start.
func (q *queries) RootNodeID(ctx context.Context) (int64, error) {
	if err := q.ready(ctx); err != nil {
		return 0, err
	}
	var id sql.NullInt64
	if err := q.db.QueryRowContext(ctx, `SELECT MIN(id) FROM story_nodes`).Scan(&id); err != nil {
		return 0, fmt.Errorf("get root node: %w", err)
	}
	if !id.Valid {
		return 0, storage.ErrNotFound
	}
	return id.Int64, nil
}

// CountNodes returns the number of stored nodes.
func (q *queries) CountNodes(ctx context.Context) (int, error) {
	if err := q.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM story_nodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

// ListNodes returns up to limit authored nodes in id order.
func (q *queries) ListNodes(ctx context.Context, limit int) ([]graph.Node, error) {
	if err := q.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM story_nodes WHERE is_generated = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	_ = rows.Close()

	nodes := make([]graph.Node, 0, len(ids))
	for _, id := range ids {
		node, err := q.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// InsertNode inserts a node, its choices and placeholders with the
// current queryer. Callers outside a transaction should use Store.InsertNode.
func (q *queries) InsertNode(ctx context.Context, draft graph.Draft) (graph.Node, error) {
	if err := q.ready(ctx); err != nil {
		return graph.Node{}, err
	}
	if err := draft.Validate(); err != nil {
		return graph.Node{}, err
	}
	kind, _ := graph.ParseNodeKind(string(draft.Kind))
	inputType, inputPrompt := inputColumns(draft.Input)

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO story_nodes (title, content, kind, input_type, input_prompt, is_generated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(draft.Title),
		draft.Content,
		string(kind),
		inputType,
		inputPrompt,
		draft.IsGenerated,
		toMillis(time.Now()),
	)
	if err != nil {
		return graph.Node{}, fmt.Errorf("insert node: %w", err)
	}
	nodeID, err := res.LastInsertId()
	if err != nil {
		return graph.Node{}, fmt.Errorf("insert node id: %w", err)
	}

	if _, err := q.insertChoices(ctx, nodeID, 0, draft.Choices); err != nil {
		return graph.Node{}, err
	}
	for _, p := range draft.Placeholders {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return graph.Node{}, fmt.Errorf("placeholder name is required")
		}
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO node_placeholders (node_id, name, source_node_id, fallback) VALUES (?, ?, ?, ?)`,
			nodeID, name, p.SourceNodeID, p.Fallback,
		); err != nil {
			if isForeignKeyViolation(err) {
				return graph.Node{}, fmt.Errorf("placeholder %q source node %d: %w", name, p.SourceNodeID, storage.ErrNotFound)
			}
			if isUniqueViolation(err) {
				return graph.Node{}, fmt.Errorf("placeholder %q: %w", name, storage.ErrAlreadyExists)
			}
			return graph.Node{}, fmt.Errorf("insert placeholder %q: %w", name, err)
		}
	}
	return q.GetNode(ctx, nodeID)
}

// AddChoices appends choices after the node's existing ones.
func (q *queries) AddChoices(ctx context.Context, nodeID int64, choices []graph.DraftChoice) ([]graph.Choice, error) {
	if err := q.ready(ctx); err != nil {
		return nil, err
	}
	var next int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM story_choices WHERE node_id = ?`, nodeID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next choice position: %w", err)
	}
	return q.insertChoices(ctx, nodeID, next, choices)
}

func (q *queries) insertChoices(ctx context.Context, nodeID int64, start int, choices []graph.DraftChoice) ([]graph.Choice, error) {
	out := make([]graph.Choice, 0, len(choices))
	for i, choice := range choices {
		text := strings.TrimSpace(choice.Text)
		if text == "" {
			return nil, fmt.Errorf("choice %d text is required", i)
		}
		role, err := graph.ParseChoiceRole(string(choice.Role))
		if err != nil {
			return nil, fmt.Errorf("choice %d: %w", i, err)
		}
		effectJSON, err := json.Marshal(choice.Effect)
		if err != nil {
			return nil, fmt.Errorf("encode choice %d effect: %w", i, err)
		}
		inputType, inputPrompt := inputColumns(choice.Input)

		res, err := q.db.ExecContext(ctx,
			`INSERT INTO story_choices (node_id, position, text, next_node_id, role, effect_json, input_type, input_prompt)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nodeID, start+i, text, nullID(choice.NextNodeID), string(role), string(effectJSON), inputType, inputPrompt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("node %d: %w", nodeID, storage.ErrNotFound)
			}
			return nil, fmt.Errorf("insert choice %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert choice id: %w", err)
		}
		var effect profile.Effect
		if err := json.Unmarshal(effectJSON, &effect); err != nil {
			return nil, fmt.Errorf("decode choice %d effect: %w", i, err)
		}
		out = append(out, graph.Choice{
			ID:         id,
			NodeID:     nodeID,
			Text:       text,
			NextNodeID: choice.NextNodeID,
			Effect:     effect,
			Input:      choice.Input,
			Role:       role,
		})
	}
	return out, nil
}
