package progression

import "github.com/louisbranch/mythos/internal/services/story/graph"

// DecisionKind tags how the next node of a transition is chosen.
type DecisionKind int

const (
	// DecisionExplicit moves to the choice's existing successor.
	DecisionExplicit DecisionKind = iota + 1
	// DecisionStayOnCurrent keeps the player in place so the node is redrawn.
	DecisionStayOnCurrent
	// DecisionRequiresGeneration asks the generation bridge for a new node.
	DecisionRequiresGeneration
	// DecisionFallbackToCurrent keeps the player in place because no
	// destination could be resolved.
	DecisionFallbackToCurrent
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionExplicit:
		return "explicit"
	case DecisionStayOnCurrent:
		return "stay_on_current"
	case DecisionRequiresGeneration:
		return "requires_generation"
	case DecisionFallbackToCurrent:
		return "fallback_to_current"
	default:
		return "unknown"
	}
}

// NextNodeDecision is the resolved destination of a choice. NodeID is set
// for every kind except DecisionRequiresGeneration.
type NextNodeDecision struct {
	Kind   DecisionKind
	NodeID int64
}

// DecisionInput is everything Decide looks at.
type DecisionInput struct {
	CurrentNodeID int64
	Choice        graph.Choice
	// TargetExists reports whether Choice.NextNodeID names a stored node.
	TargetExists bool
	CanGenerate  bool
}

// Decide picks the next node in priority order: refresh stays, an existing
// explicit successor wins, a missing one is generated, and otherwise the
// player stays where they are.
func Decide(in DecisionInput) NextNodeDecision {
	switch {
	case in.Choice.IsRefresh():
		return NextNodeDecision{Kind: DecisionStayOnCurrent, NodeID: in.CurrentNodeID}
	case in.Choice.HasNext() && in.TargetExists:
		return NextNodeDecision{Kind: DecisionExplicit, NodeID: in.Choice.NextNodeID}
	case in.CanGenerate:
		return NextNodeDecision{Kind: DecisionRequiresGeneration}
	default:
		return NextNodeDecision{Kind: DecisionFallbackToCurrent, NodeID: in.CurrentNodeID}
	}
}
