package generation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/mythos/internal/services/story/profile"
)

// SystemPrompt frames the provider as the game's narrator and fixes the reply shape.
const SystemPrompt = `You are the narrator of a LitRPG adventure set inside MYTHOS, a renaissance faire where the costumes, props and performers slowly turn out to be real.
Continue the story from the player's recent choices in second person, present tense, matching the tone of the style examples.
Reply with a single JSON object and nothing else, using this structure:
{
  "title": "short node title",
  "content": "two or three paragraphs of narration",
  "choices": [
    {"text": "what the player does", "metadataImpact": {"bravery": 1, "good_evil": -2}}
  ]
}
Offer at least four choices. Every choice needs a metadataImpact object; use attribute names such as strength, dexterity, constitution, intelligence, wisdom, charisma, good_evil, order_chaos, combat_preference, exploration_preference, social_preference, puzzle_preference, caution, bravery, curiosity, empathy and magic_affinity with small integer deltas.`

const (
	maxRecentSteps = 3
	exampleClip    = 600
	stepClip       = 400
)

// BuildPrompt renders the user message for gctx.
func BuildPrompt(gctx Context) string {
	var b strings.Builder
	c := gctx.Character

	b.WriteString("## Character Information\n")
	fmt.Fprintf(&b, "Name: %s\n", fallback(c.Name, "Unknown"))
	fmt.Fprintf(&b, "Level: %d\n", c.Level)
	fmt.Fprintf(&b, "Experience: %d\n", c.Experience)
	if c.ClassName != "" {
		fmt.Fprintf(&b, "Class: %s\n", c.ClassName)
	}
	if len(c.Equipment) > 0 {
		fmt.Fprintf(&b, "Inventory: %s\n", strings.Join(c.Equipment, ", "))
	}

	p := gctx.Profile
	b.WriteString("\n## Stats\n")
	for _, attr := range profile.CoreAttributes {
		value, _ := p.Value(attr)
		fmt.Fprintf(&b, "%s: %d\n", attr, value)
	}
	fmt.Fprintf(&b, "Alignment: %s\n", profile.DeriveAlignment(p))

	prefs := p.Preferences()
	b.WriteString("\n## Player Preferences\n")
	fmt.Fprintf(&b, "combat: %d, exploration: %d, social: %d, puzzle: %d\n",
		prefs.Combat, prefs.Exploration, prefs.Social, prefs.Puzzle)
	for _, key := range sortedKeys(gctx.Metadata) {
		fmt.Fprintf(&b, "%s: %v\n", key, gctx.Metadata[key])
	}

	recent := gctx.Recent
	if len(recent) > maxRecentSteps {
		recent = recent[len(recent)-maxRecentSteps:]
	}
	if len(recent) > 0 {
		b.WriteString("\n## Recent Story Progression\n")
		for i, step := range recent {
			fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, step.Title, clip(step.Content, stepClip))
			if step.ChoiceText != "" {
				fmt.Fprintf(&b, "Player chose: %s\n", step.ChoiceText)
			}
		}
	}

	if len(gctx.Examples) > 0 {
		b.WriteString("\n## Story Style Examples\n")
		for _, node := range gctx.Examples {
			fmt.Fprintf(&b, "### %s\n%s\n", node.Title, clip(node.Content, exampleClip))
		}
	}

	b.WriteString("\nWrite the next story node as JSON.")
	return b.String()
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
