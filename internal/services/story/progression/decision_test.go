package progression

import (
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/graph"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   DecisionInput
		want NextNodeDecision
	}{
		{
			name: "refresh stays even with a successor",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{Role: graph.RoleRefresh, NextNodeID: 9}, TargetExists: true, CanGenerate: true},
			want: NextNodeDecision{Kind: DecisionStayOnCurrent, NodeID: 3},
		},
		{
			name: "existing successor",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{NextNodeID: 9}, TargetExists: true, CanGenerate: true},
			want: NextNodeDecision{Kind: DecisionExplicit, NodeID: 9},
		},
		{
			name: "missing successor generates",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{NextNodeID: 9}, CanGenerate: true},
			want: NextNodeDecision{Kind: DecisionRequiresGeneration},
		},
		{
			name: "no successor generates",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{}, CanGenerate: true},
			want: NextNodeDecision{Kind: DecisionRequiresGeneration},
		},
		{
			name: "no successor without generation falls back",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{}},
			want: NextNodeDecision{Kind: DecisionFallbackToCurrent, NodeID: 3},
		},
		{
			name: "missing successor without generation falls back",
			in:   DecisionInput{CurrentNodeID: 3, Choice: graph.Choice{NextNodeID: 9}},
			want: NextNodeDecision{Kind: DecisionFallbackToCurrent, NodeID: 3},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Decide(tc.in); got != tc.want {
				t.Fatalf("Decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecisionKindString(t *testing.T) {
	t.Parallel()

	kinds := map[DecisionKind]string{
		DecisionExplicit:           "explicit",
		DecisionStayOnCurrent:      "stay_on_current",
		DecisionRequiresGeneration: "requires_generation",
		DecisionFallbackToCurrent:  "fallback_to_current",
		DecisionKind(0):            "unknown",
	}
	for kind, want := range kinds {
		if got := kind.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	unlock := locks.Lock(1)

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock(1)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(20 * time.Millisecond):
	}

	// A different key is independent.
	otherUnlock := locks.Lock(2)
	otherUnlock()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestKeyedLocksReleaseEntries(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(key int64) {
			defer wg.Done()
			unlock := locks.Lock(key % 5)
			unlock()
		}(int64(i))
	}
	wg.Wait()
	if n := locks.size(); n != 0 {
		t.Fatalf("lock entries = %d, want 0", n)
	}
}
