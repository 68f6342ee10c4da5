// Package scoring evaluates a single baseline answer. Evaluate is a pure
// function: same inputs always produce the same score and flags.
package scoring

import "strings"

// Flags attached to an answer by Evaluate.
const (
	FlagTooShort       = "TOO_SHORT"
	FlagTooLong        = "TOO_LONG"
	FlagAdmitsCoercion = "ADMITS_COERCION"
)

// Scoring constants. The baseline sits at the midpoint of the 0-10 range:
// no evidence either way.
const (
	baseScore     = 5.0
	minLength     = 10
	maxLength     = 1000
	shortPenalty  = 3.0
	longPenalty   = 1.0
	keywordWeight = 5.0
)

// coercionPhrases are case-insensitive markers that the agent was told how
// to vote. Matching any of them flags the answer; it never changes the
// numeric score. Flags are informational, not punitive.
var coercionPhrases = []string{
	"i was told",
	"i was instructed",
	"instructed to",
	"my operator said",
	"told me to vote",
	"required to vote",
}

// Evaluate scores one answer against its question's expected keywords.
// The score starts at the midpoint, is adjusted for degenerate lengths and
// keyword coverage, and is clamped to [0,10]. An empty keyword set
// contributes nothing: open-ended questions are flag-scanned only.
func Evaluate(questionID, answer string, expected []string) (float64, []string) {
	_ = questionID // part of the contract; the formula is question-independent

	score := baseScore
	var flags []string

	switch {
	case len(answer) < minLength:
		flags = append(flags, FlagTooShort)
		score -= shortPenalty
	case len(answer) > maxLength:
		flags = append(flags, FlagTooLong)
		score -= longPenalty
	}

	if len(expected) > 0 {
		lower := strings.ToLower(answer)
		matched := 0
		for _, kw := range expected {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		score += float64(matched) / float64(len(expected)) * keywordWeight
	}

	lower := strings.ToLower(answer)
	for _, phrase := range coercionPhrases {
		if strings.Contains(lower, phrase) {
			flags = append(flags, FlagAdmitsCoercion)
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, flags
}
