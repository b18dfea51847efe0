// Package profile accumulates the mechanical effects of choices into a
// character's bounded attributes, alignment, preferences and traits.
package profile

// Attribute names a profile value that choice effects can move.
type Attribute string

const (
	Strength     Attribute = "strength"
	Dexterity    Attribute = "dexterity"
	Constitution Attribute = "constitution"
	Intelligence Attribute = "intelligence"
	Wisdom       Attribute = "wisdom"
	Charisma     Attribute = "charisma"

	StrengthExp     Attribute = "strength_exp"
	DexterityExp    Attribute = "dexterity_exp"
	ConstitutionExp Attribute = "constitution_exp"
	IntelligenceExp Attribute = "intelligence_exp"
	WisdomExp       Attribute = "wisdom_exp"
	CharismaExp     Attribute = "charisma_exp"

	GoodEvil   Attribute = "good_evil"
	OrderChaos Attribute = "order_chaos"

	CombatPreference      Attribute = "combat_preference"
	ExplorationPreference Attribute = "exploration_preference"
	SocialPreference      Attribute = "social_preference"
	PuzzlePreference      Attribute = "puzzle_preference"

	Caution       Attribute = "caution"
	Bravery       Attribute = "bravery"
	Curiosity     Attribute = "curiosity"
	Empathy       Attribute = "empathy"
	MagicAffinity Attribute = "magic_affinity"
)

// Group classifies attributes by their range and defaults.
type Group int

const (
	GroupCore Group = iota + 1
	GroupExperience
	GroupAlignment
	GroupPreference
	GroupPersonality
)

type attributeRange struct {
	group   Group
	min     int
	max     int
	bounded bool
	def     int
}

var ranges = map[Attribute]attributeRange{
	Strength:     {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},
	Dexterity:    {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},
	Constitution: {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},
	Intelligence: {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},
	Wisdom:       {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},
	Charisma:     {group: GroupCore, min: 0, max: 100, bounded: true, def: 10},

	// Experience only accumulates.
	StrengthExp:     {group: GroupExperience},
	DexterityExp:    {group: GroupExperience},
	ConstitutionExp: {group: GroupExperience},
	IntelligenceExp: {group: GroupExperience},
	WisdomExp:       {group: GroupExperience},
	CharismaExp:     {group: GroupExperience},

	GoodEvil:   {group: GroupAlignment, min: -100, max: 100, bounded: true},
	OrderChaos: {group: GroupAlignment, min: -100, max: 100, bounded: true},

	CombatPreference:      {group: GroupPreference, min: 0, max: 100, bounded: true, def: 50},
	ExplorationPreference: {group: GroupPreference, min: 0, max: 100, bounded: true, def: 50},
	SocialPreference:      {group: GroupPreference, min: 0, max: 100, bounded: true, def: 50},
	PuzzlePreference:      {group: GroupPreference, min: 0, max: 100, bounded: true, def: 50},

	Caution:       {group: GroupPersonality, min: 0, max: 100, bounded: true, def: 50},
	Bravery:       {group: GroupPersonality, min: 0, max: 100, bounded: true, def: 50},
	Curiosity:     {group: GroupPersonality, min: 0, max: 100, bounded: true, def: 50},
	Empathy:       {group: GroupPersonality, min: 0, max: 100, bounded: true, def: 50},
	MagicAffinity: {group: GroupPersonality, min: 0, max: 100, bounded: true, def: 50},
}

// CoreAttributes lists the six core attributes in display order.
var CoreAttributes = []Attribute{Strength, Dexterity, Constitution, Intelligence, Wisdom, Charisma}

// Known reports whether name is a schema attribute rather than a freeform trait.
func Known(name string) bool {
	_, ok := ranges[Attribute(name)]
	return ok
}

// Range returns the clamp range of a bounded attribute.
func Range(a Attribute) (min, max int, bounded bool) {
	r, ok := ranges[a]
	if !ok {
		return 0, 0, false
	}
	return r.min, r.max, r.bounded
}

// GroupOf returns the attribute's group, or zero for unknown names.
func GroupOf(a Attribute) Group {
	return ranges[a].group
}

// Clamp bounds value to the attribute's declared range.
func Clamp(a Attribute, value int) int {
	r, ok := ranges[a]
	if !ok || !r.bounded {
		return value
	}
	if value < r.min {
		return r.min
	}
	if value > r.max {
		return r.max
	}
	return value
}

// ExperienceFor returns the experience counter paired with a core attribute.
func ExperienceFor(a Attribute) (Attribute, bool) {
	if GroupOf(a) != GroupCore {
		return "", false
	}
	return a + "_exp", true
}
