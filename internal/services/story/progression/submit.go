package progression

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/services/story/generation"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

const tracerName = "github.com/louisbranch/mythos/internal/services/story/progression"

// Metadata keys the engine writes into progress metadata.
const (
	MetaClassID         = "classId"
	MetaClassName       = "className"
	MetaEquipment       = "equipment"
	MetaDeathReason     = "death_reason"
	MetaDeathTimestamp  = "death_timestamp"
	MetaPromptsSurvived = "prompts_survived"
)

const (
	recentSteps   = 3
	styleExamples = 2
)

// Submission is one choice a player makes.
type Submission struct {
	CharacterID int64
	ChoiceID    int64
	InputValue  string
	// ClassID overrides the class resolved from the choice on outfit nodes.
	ClassID int64
	// SubmissionID makes resubmission idempotent; generated when empty.
	SubmissionID string
}

// Result is the outcome of a submission.
type Result struct {
	View
	Decision NextNodeDecision
	Died     bool
	// Replayed is set when SubmissionID was already applied; nothing changed.
	Replayed bool
}

// SubmitChoice validates and applies one choice for a character. Submissions
// for the same character are serialized; the graph write, profile update,
// class assignment and progress save commit together or not at all.
func (e *Engine) SubmitChoice(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "story.SubmitChoice")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("character.id", sub.CharacterID),
		attribute.Int64("choice.id", sub.ChoiceID),
	)

	if sub.CharacterID <= 0 {
		return Result{}, e.reject(span, invalidArgument("character id must be positive"))
	}
	if sub.ChoiceID <= 0 {
		return Result{}, e.reject(span, invalidArgument("choice id must be positive"))
	}
	sub.SubmissionID = strings.TrimSpace(sub.SubmissionID)

	unlock := e.locks.Lock(sub.CharacterID)
	defer unlock()

	result, outcome, err := e.submit(ctx, sub)
	if err != nil {
		return Result{}, e.reject(span, err)
	}
	e.cfg.Metrics.ChoiceResolved(outcome)
	span.SetAttributes(
		attribute.String("decision", result.Decision.Kind.String()),
		attribute.Int64("node.id", result.Progress.CurrentNodeID),
	)
	return result, nil
}

// SubmitPassword submits a choice whose answer must be a 4-digit code.
func (e *Engine) SubmitPassword(ctx context.Context, sub Submission) (Result, error) {
	req := &graph.InputRequirement{Type: graph.InputPassword}
	if err := graph.ValidateInput(req, sub.InputValue); err != nil {
		e.cfg.Metrics.ChoiceResolved(metrics.OutcomeRejected)
		return Result{}, err
	}
	return e.SubmitChoice(ctx, sub)
}

func (e *Engine) reject(span trace.Span, err error) error {
	outcome := metrics.OutcomeRejected
	if apperrors.GetCode(err).Retryable() {
		outcome = metrics.OutcomeFailed
	}
	e.cfg.Metrics.ChoiceResolved(outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.GetCode(err)))
	return err
}

// pending is everything validated before the write transaction.
type pending struct {
	character storage.Character
	progress  storage.Progress
	node      graph.Node
	choice    graph.Choice
	class     *storage.Class
	decision  NextNodeDecision
	draft     graph.Draft
}

func (e *Engine) submit(ctx context.Context, sub Submission) (Result, string, error) {
	p, replay, err := e.prepare(ctx, sub)
	if err != nil {
		return Result{}, "", err
	}
	if replay != nil {
		return *replay, metrics.OutcomeReplayed, nil
	}

	if p.decision.Kind == DecisionRequiresGeneration {
		gctx, err := e.generationContext(ctx, p)
		if err != nil {
			return Result{}, "", err
		}
		draft, err := e.cfg.Generator.Generate(ctx, gctx)
		if err != nil {
			e.cfg.Logf("story: generation for character %d failed: %v", sub.CharacterID, err)
			return Result{}, "", err
		}
		p.draft = draft
	}
	if p.decision.Kind == DecisionFallbackToCurrent {
		e.cfg.Logf("story: character %d choice %d has no destination; staying on node %d",
			sub.CharacterID, sub.ChoiceID, p.decision.NodeID)
	}

	submissionID := sub.SubmissionID
	if submissionID == "" {
		if submissionID, err = e.cfg.NewID(); err != nil {
			return Result{}, "", persistenceError("generate submission id", err)
		}
	}

	var result Result
	err = e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := e.commit(ctx, tx, p, sub, submissionID)
		result = r
		return err
	})
	if err != nil {
		return Result{}, "", persistenceError("commit choice", err)
	}

	outcome := metrics.OutcomeAdvanced
	switch {
	case result.Died:
		outcome = metrics.OutcomeDied
	case p.decision.Kind == DecisionRequiresGeneration:
		outcome = metrics.OutcomeGenerated
	case p.decision.Kind == DecisionStayOnCurrent, p.decision.Kind == DecisionFallbackToCurrent:
		outcome = metrics.OutcomeStayed
	}
	return result, outcome, nil
}

// prepare runs every read-only validation step in order and resolves the
// next node decision.
func (e *Engine) prepare(ctx context.Context, sub Submission) (pending, *Result, error) {
	var p pending

	character, err := e.store.GetCharacter(ctx, sub.CharacterID)
	if err != nil {
		return p, nil, characterError(sub.CharacterID, err)
	}
	if character.IsDead {
		return p, nil, apperrors.WithMetadata(apperrors.CodeCharacterDeceased,
			fmt.Sprintf("character %d is dead", sub.CharacterID),
			map[string]string{"CharacterID": strconv.FormatInt(sub.CharacterID, 10)})
	}
	p.character = character

	progress, err := e.store.GetProgress(ctx, sub.CharacterID)
	if errors.Is(err, storage.ErrNotFound) {
		var view View
		if view, err = e.GetProgress(ctx, sub.CharacterID); err == nil {
			progress = view.Progress
		}
	}
	if err != nil {
		return p, nil, persistenceError("load progress", err)
	}
	p.progress = progress

	if progress.HasSubmission(sub.SubmissionID) {
		replay, err := e.replay(ctx, character, progress)
		return p, replay, err
	}

	choice, err := e.store.GetChoice(ctx, sub.ChoiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p, nil, apperrors.WrapWithMetadata(apperrors.CodeChoiceNotFound,
				fmt.Sprintf("choice %d not found", sub.ChoiceID),
				map[string]string{"ChoiceID": strconv.FormatInt(sub.ChoiceID, 10)}, err)
		}
		return p, nil, persistenceError("load choice", err)
	}
	if choice.NodeID != progress.CurrentNodeID {
		return p, nil, apperrors.WithMetadata(apperrors.CodeChoiceNodeMismatch,
			fmt.Sprintf("choice %d belongs to node %d, character is on node %d", choice.ID, choice.NodeID, progress.CurrentNodeID),
			map[string]string{
				"ChoiceID":      strconv.FormatInt(choice.ID, 10),
				"NodeID":        strconv.FormatInt(choice.NodeID, 10),
				"CurrentNodeID": strconv.FormatInt(progress.CurrentNodeID, 10),
			})
	}

	node, err := e.store.GetNode(ctx, progress.CurrentNodeID)
	if err != nil {
		return p, nil, nodeError(progress.CurrentNodeID, err)
	}
	if err := graph.ValidateInput(graph.EffectiveInput(node, choice), sub.InputValue); err != nil {
		return p, nil, err
	}
	p.node = node
	p.choice = choice

	if node.Kind == graph.KindOutfitSelection && !choice.IsRefresh() {
		if classID := resolveClassID(sub, choice); classID > 0 {
			class, err := e.store.GetClass(ctx, classID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return p, nil, apperrors.WrapWithMetadata(apperrors.CodeClassNotFound,
						fmt.Sprintf("class %d not found", classID),
						map[string]string{"ClassID": strconv.FormatInt(classID, 10)}, err)
				}
				return p, nil, persistenceError("load class", err)
			}
			p.class = &class
		} else {
			e.cfg.Logf("story: outfit choice %d for character %d carries no class", choice.ID, sub.CharacterID)
		}
	}

	targetExists := false
	if choice.HasNext() {
		if targetExists, err = e.store.NodeExists(ctx, choice.NextNodeID); err != nil {
			return p, nil, persistenceError("check next node", err)
		}
	}
	p.decision = Decide(DecisionInput{
		CurrentNodeID: progress.CurrentNodeID,
		Choice:        choice,
		TargetExists:  targetExists,
		CanGenerate:   e.cfg.Generator != nil,
	})
	return p, nil, nil
}

// resolveClassID prefers the request override, then the drawn choice's class,
// then a classId in the choice effect.
func resolveClassID(sub Submission, choice graph.Choice) int64 {
	if sub.ClassID > 0 {
		return sub.ClassID
	}
	if choice.ClassID > 0 {
		return choice.ClassID
	}
	switch v := choice.Effect.Freeform[MetaClassID].(type) {
	case float64:
		if v > 0 && v == math.Trunc(v) {
			return int64(v)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func (e *Engine) replay(ctx context.Context, character storage.Character, progress storage.Progress) (*Result, error) {
	node, err := e.store.GetNode(ctx, progress.CurrentNodeID)
	if err != nil {
		return nil, nodeError(progress.CurrentNodeID, err)
	}
	if node, err = e.present(ctx, e.store, node, progress.ChoiceIDs()); err != nil {
		return nil, err
	}
	p, err := profile.Load(ctx, e.store, character.ID)
	if err != nil {
		return nil, persistenceError("load profile", err)
	}
	return &Result{
		View:     View{Character: character, Progress: progress, Node: node, Profile: p},
		Decision: NextNodeDecision{Kind: DecisionStayOnCurrent, NodeID: progress.CurrentNodeID},
		Replayed: true,
	}, nil
}

// commit applies the prepared transition inside tx.
func (e *Engine) commit(ctx context.Context, tx storage.Tx, p pending, sub Submission, submissionID string) (Result, error) {
	now := e.now()
	decision := p.decision

	nextID := decision.NodeID
	if decision.Kind == DecisionRequiresGeneration {
		node, err := tx.InsertNode(ctx, p.draft)
		if err != nil {
			return Result{}, persistenceError("insert generated node", err)
		}
		nextID = node.ID
		decision.NodeID = node.ID
	}
	if nextID <= 0 {
		nextID = p.progress.CurrentNodeID
		decision = NextNodeDecision{Kind: DecisionFallbackToCurrent, NodeID: nextID}
	}

	progress := p.progress
	metadata := make(map[string]any, len(progress.Metadata)+len(p.choice.Effect.Deltas))
	for key, value := range progress.Metadata {
		metadata[key] = value
	}
	for key, value := range p.choice.Effect.Raw() {
		metadata[key] = value
	}

	if _, err := profile.ApplyEffect(ctx, tx, p.character.ID, p.choice.Effect, now); err != nil {
		return Result{}, persistenceError("apply choice effect", err)
	}

	choiceText := p.choice.Text
	character := p.character
	if p.class != nil {
		if err := tx.AssignClass(ctx, character.ID, p.class.ID, now); err != nil {
			return Result{}, persistenceError("assign class", err)
		}
		if len(p.class.Bonuses) > 0 {
			if _, err := profile.ApplyEffect(ctx, tx, character.ID, profile.Effect{Deltas: p.class.Bonuses}, now); err != nil {
				return Result{}, persistenceError("apply class bonuses", err)
			}
		}
		equipment := make([]any, len(p.class.Equipment))
		for i, item := range p.class.Equipment {
			equipment[i] = item
		}
		metadata[MetaClassID] = p.class.ID
		metadata[MetaClassName] = p.class.Name
		metadata[MetaEquipment] = equipment
		character.ClassID = p.class.ID
		choiceText = p.class.Name
	}

	progress.History = append(append([]storage.HistoryEntry(nil), progress.History...), storage.HistoryEntry{
		ChoiceID:     p.choice.ID,
		NodeID:       p.node.ID,
		ChoiceText:   choiceText,
		Timestamp:    now,
		InputValue:   strings.TrimSpace(sub.InputValue),
		SubmissionID: submissionID,
	})

	next, err := tx.GetNode(ctx, nextID)
	if err != nil {
		return Result{}, nodeError(nextID, err)
	}

	died := false
	if strings.EqualFold(strings.TrimSpace(next.Title), e.cfg.DeathNodeTitle) {
		if _, err := tx.MarkDead(ctx, character.ID, now); err != nil {
			return Result{}, persistenceError("mark character dead", err)
		}
		metadata[MetaDeathReason] = DeathReason
		metadata[MetaDeathTimestamp] = now.Format(time.RFC3339)
		metadata[MetaPromptsSurvived] = len(progress.History)
		character.IsDead = true
		character.DiedAt = now
		died = true
	}

	progress.CurrentNodeID = nextID
	progress.Metadata = metadata
	progress.UpdatedAt = now
	saved, err := tx.SaveProgress(ctx, progress)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return Result{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "progress changed concurrently", err)
		}
		return Result{}, persistenceError("save progress", err)
	}

	snapshot, err := profile.Load(ctx, tx, character.ID)
	if err != nil {
		return Result{}, persistenceError("load profile", err)
	}
	presented, err := e.present(ctx, tx, next, saved.ChoiceIDs())
	if err != nil {
		return Result{}, err
	}
	return Result{
		View:     View{Character: character, Progress: saved, Node: presented, Profile: snapshot},
		Decision: decision,
		Died:     died,
	}, nil
}

// generationContext gathers the prompt context for a pending transition,
// including the choice being made.
func (e *Engine) generationContext(ctx context.Context, p pending) (generation.Context, error) {
	current, err := profile.Load(ctx, e.store, p.character.ID)
	if err != nil {
		return generation.Context{}, persistenceError("load profile", err)
	}

	metadata := make(map[string]any, len(p.progress.Metadata))
	for key, value := range p.progress.Metadata {
		metadata[key] = value
	}
	for key, value := range p.choice.Effect.Raw() {
		metadata[key] = value
	}

	character := generation.Character{
		ID:         p.character.ID,
		Name:       p.character.Name,
		Level:      p.character.Level,
		Experience: p.character.Experience,
	}
	if p.class != nil {
		character.ClassName = p.class.Name
		character.Equipment = p.class.Equipment
	} else {
		if name, ok := metadata[MetaClassName].(string); ok {
			character.ClassName = name
		}
		if items, ok := metadata[MetaEquipment].([]any); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					character.Equipment = append(character.Equipment, s)
				}
			}
		}
	}
	delete(metadata, MetaEquipment)

	history := p.progress.History
	if len(history) > recentSteps-1 {
		history = history[len(history)-(recentSteps-1):]
	}
	steps := make([]generation.Step, 0, recentSteps)
	for _, entry := range history {
		node, err := e.store.GetNode(ctx, entry.NodeID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return generation.Context{}, persistenceError("load history node", err)
		}
		steps = append(steps, generation.Step{Title: node.Title, Content: node.Content, ChoiceText: entry.ChoiceText})
	}
	steps = append(steps, generation.Step{Title: p.node.Title, Content: p.node.Content, ChoiceText: p.choice.Text})

	examples, err := e.store.ListNodes(ctx, styleExamples)
	if err != nil {
		return generation.Context{}, persistenceError("load style examples", err)
	}

	return generation.Context{
		Character: character,
		Profile:   current.Apply(p.choice.Effect),
		Recent:    steps,
		Metadata:  metadata,
		Examples:  examples,
	}, nil
}
