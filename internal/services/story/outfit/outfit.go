// Package outfit draws weighted class outfits and turns them into the
// choice set presented on outfit selection nodes.
package outfit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/louisbranch/mythos/internal/services/story/graph"
)

// DefaultSampleSize is how many outfits an outfit selection node shows.
const DefaultSampleSize = 4

// Option is one class outfit that can be offered to a player.
type Option struct {
	ClassID           int64
	ClassName         string
	ClassDescription  string
	OutfitID          int64
	OutfitDescription string
	// Weight is the relative draw likelihood; zero or negative never draws.
	Weight float64
}

// Label is the choice text shown for the option.
func (o Option) Label() string {
	return fmt.Sprintf("%s: %s", o.ClassName, o.OutfitDescription)
}

// Sampler draws weighted samples without replacement. Safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler over src; nil src seeds from the runtime.
func NewSampler(src rand.Source) *Sampler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Sampler{rng: rand.New(src)}
}

type keyed struct {
	option Option
	key    float64
}

// Sample returns up to n options, at most one per class, drawn without
// replacement with probability proportional to weight.
func (s *Sampler) Sample(pool []Option, n int) []Option {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	// Efraimidis-Spirakis: key = u^(1/w), keep the largest keys.
	candidates := make([]keyed, 0, len(pool))
	s.mu.Lock()
	for _, option := range pool {
		if option.Weight <= 0 || math.IsNaN(option.Weight) {
			continue
		}
		u := s.rng.Float64()
		for u == 0 {
			u = s.rng.Float64()
		}
		candidates = append(candidates, keyed{option: option, key: math.Pow(u, 1/option.Weight)})
	}
	s.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].key > candidates[j].key
	})

	out := make([]Option, 0, n)
	seenClass := make(map[int64]bool, n)
	for _, candidate := range candidates {
		if seenClass[candidate.option.ClassID] {
			continue
		}
		seenClass[candidate.option.ClassID] = true
		out = append(out, candidate.option)
		if len(out) == n {
			break
		}
	}
	return out
}

// ChoiceSet builds the presented choices for an outfit selection node:
// drawn options are mapped onto the node's stored slot choices in order,
// then the stored refresh choices are appended.
func ChoiceSet(node graph.Node, drawn []Option) []graph.Choice {
	slots := node.SlotChoices()
	choices := make([]graph.Choice, 0, len(slots)+1)
	for i, option := range drawn {
		if i >= len(slots) {
			break
		}
		choice := slots[i]
		choice.Text = option.Label()
		choice.ClassID = option.ClassID
		choice.OutfitID = option.OutfitID
		choices = append(choices, choice)
	}
	return append(choices, node.RefreshChoices()...)
}

// SlotCount is the number of outfits a node can present given the configured size.
func SlotCount(node graph.Node, size int) int {
	if size <= 0 {
		size = DefaultSampleSize
	}
	if slots := len(node.SlotChoices()); slots < size {
		return slots
	}
	return size
}
