package profile

import (
	"math"
	"time"
)

// Profile is a character's accumulated mechanical state.
type Profile struct {
	CharacterID int64

	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int

	StrengthExp     int
	DexterityExp    int
	ConstitutionExp int
	IntelligenceExp int
	WisdomExp       int
	CharismaExp     int

	GoodEvil   int
	OrderChaos int

	CombatPreference      int
	ExplorationPreference int
	SocialPreference      int
	PuzzlePreference      int

	Caution       int
	Bravery       int
	Curiosity     int
	Empathy       int
	MagicAffinity int

	// AdditionalTraits holds every key outside the fixed schema.
	AdditionalTraits map[string]any
	UpdatedAt        time.Time
}

// Default returns the neutral starting profile.
func Default(characterID int64) Profile {
	p := Profile{CharacterID: characterID}
	for attr, r := range ranges {
		*p.slot(attr) = r.def
	}
	return p
}

func (p *Profile) slot(a Attribute) *int {
	switch a {
	case Strength:
		return &p.Strength
	case Dexterity:
		return &p.Dexterity
	case Constitution:
		return &p.Constitution
	case Intelligence:
		return &p.Intelligence
	case Wisdom:
		return &p.Wisdom
	case Charisma:
		return &p.Charisma
	case StrengthExp:
		return &p.StrengthExp
	case DexterityExp:
		return &p.DexterityExp
	case ConstitutionExp:
		return &p.ConstitutionExp
	case IntelligenceExp:
		return &p.IntelligenceExp
	case WisdomExp:
		return &p.WisdomExp
	case CharismaExp:
		return &p.CharismaExp
	case GoodEvil:
		return &p.GoodEvil
	case OrderChaos:
		return &p.OrderChaos
	case CombatPreference:
		return &p.CombatPreference
	case ExplorationPreference:
		return &p.ExplorationPreference
	case SocialPreference:
		return &p.SocialPreference
	case PuzzlePreference:
		return &p.PuzzlePreference
	case Caution:
		return &p.Caution
	case Bravery:
		return &p.Bravery
	case Curiosity:
		return &p.Curiosity
	case Empathy:
		return &p.Empathy
	case MagicAffinity:
		return &p.MagicAffinity
	default:
		return nil
	}
}

// Value returns the current value of a schema attribute.
func (p Profile) Value(a Attribute) (int, bool) {
	ptr := p.slot(a)
	if ptr == nil {
		return 0, false
	}
	return *ptr, true
}

// Apply returns a copy of p with effect folded in. Schema deltas are added
// and clamped; numeric freeform values accumulate without bounds and any
// other freeform value replaces the previous one.
func (p Profile) Apply(effect Effect) Profile {
	next := p
	next.AdditionalTraits = make(map[string]any, len(p.AdditionalTraits)+len(effect.Freeform))
	for key, value := range p.AdditionalTraits {
		next.AdditionalTraits[key] = value
	}

	for attr, delta := range effect.Deltas {
		ptr := next.slot(attr)
		if ptr == nil {
			continue
		}
		*ptr = Clamp(attr, addSaturating(*ptr, delta))
	}

	for key, value := range effect.Freeform {
		delta, numeric := toFloat(value)
		if !numeric {
			next.AdditionalTraits[key] = value
			continue
		}
		if current, ok := toFloat(next.AdditionalTraits[key]); ok {
			next.AdditionalTraits[key] = current + delta
			continue
		}
		next.AdditionalTraits[key] = delta
	}
	if len(next.AdditionalTraits) == 0 {
		next.AdditionalTraits = nil
	}
	return next
}

// Attributes returns the core attributes keyed by name.
func (p Profile) Attributes() map[Attribute]int {
	out := make(map[Attribute]int, len(CoreAttributes))
	for _, attr := range CoreAttributes {
		out[attr], _ = p.Value(attr)
	}
	return out
}

// Preferences is the narrative preference view of a profile.
type Preferences struct {
	Combat      int
	Exploration int
	Social      int
	Puzzle      int
}

// Preferences returns the narrative preference scores.
func (p Profile) Preferences() Preferences {
	return Preferences{
		Combat:      p.CombatPreference,
		Exploration: p.ExplorationPreference,
		Social:      p.SocialPreference,
		Puzzle:      p.PuzzlePreference,
	}
}

// Personality returns the personality traits keyed by name.
func (p Profile) Personality() map[Attribute]int {
	return map[Attribute]int{
		Caution:       p.Caution,
		Bravery:       p.Bravery,
		Curiosity:     p.Curiosity,
		Empathy:       p.Empathy,
		MagicAffinity: p.MagicAffinity,
	}
}

func addSaturating(a, b int) int {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt
	case b < 0 && sum > a:
		return math.MinInt
	}
	return sum
}
