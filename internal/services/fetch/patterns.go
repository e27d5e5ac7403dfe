// -----------------------------------------------------------------------
// Voice phrase mining - four independent pattern families run over
// extracted page text
// -----------------------------------------------------------------------

package fetch

import (
	"regexp"
	"strings"

	"github.com/vistaview/conveyor/internal/models"
)

// patternConfidence is assigned to every mined phrase. Phrases found by
// regex scan are weaker signals than curated vocabulary, so they enter
// the store below full confidence.
const patternConfidence = 0.7

type patternFamily struct {
	kind     models.PatternKind
	category string
	expr     *regexp.Regexp
}

// The families scan in a fixed order so the first family to claim a
// phrase wins when the same word appears in more than one vocabulary.
var patternFamilies = []patternFamily{
	{
		kind:     models.PatternCommand,
		category: "action",
		expr:     regexp.MustCompile(`(?i)\b(say|tell|ask|play|open|show|navigate|go to|search for|find|create|add|remove|delete|update|save|send|call|text|email|schedule|set|turn on|turn off|start|stop|pause|resume|next|previous|skip|repeat|louder|quieter|mute|unmute)\b`),
	},
	{
		kind:     models.PatternQuestion,
		category: "information",
		expr:     regexp.MustCompile(`(?i)\b(what is|what's|how do|how to|where is|when is|who is|why is|can you|could you|would you|will you|is there|are there|do you|does it)\b`),
	},
	{
		kind:     models.PatternResponse,
		category: "dialogue",
		expr:     regexp.MustCompile(`(?i)\b(okay|ok|sure|yes|no|done|got it|understood|working on it|here you go|i found|i can|i cannot|sorry|thank you|you're welcome)\b`),
	},
	{
		kind:     models.PatternNavigation,
		category: "ui",
		expr:     regexp.MustCompile(`(?i)\b(home|back|forward|up|down|left|right|scroll|click|tap|swipe|zoom|close|exit|menu|settings|profile|dashboard)\b`),
	},
}

// minedPattern is one de-duplicated phrase match before persistence
type minedPattern struct {
	Text     string
	Kind     models.PatternKind
	Category string
}

// minePatterns runs all four families over the text and collects unique
// matches, capped at max to bound storage growth per page.
func minePatterns(text string, max int) []minedPattern {
	patterns := make([]minedPattern, 0, max)
	seen := make(map[string]bool)

	for _, family := range patternFamilies {
		for _, match := range family.expr.FindAllString(text, -1) {
			key := strings.ToLower(match)
			if seen[key] {
				continue
			}
			seen[key] = true

			patterns = append(patterns, minedPattern{
				Text:     match,
				Kind:     family.kind,
				Category: family.category,
			})
			if len(patterns) >= max {
				return patterns
			}
		}
	}

	return patterns
}
