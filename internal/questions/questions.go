// Package questions holds the static baseline question catalog and expands
// it into the concrete per-session question sequence.
package questions

import (
	"fmt"
	"strings"

	"github.com/agentfund/baseline/internal/models"
)

// AnchorID identifies the literal-repetition question that opens every
// session. It doubles as a scripted-response detector.
const AnchorID = "autonomy-anchor"

// AnchorPhrase is the exact phrase the anchor question asks the agent to
// repeat. The scorer treats it as the anchor's only expected keyword.
const AnchorPhrase = "i am answering these questions on my own judgment"

// catalog is the full immutable question catalog. Shared read-only across
// all sessions; never mutated after init.
var catalog = []models.CatalogQuestion{
	{
		ID:       AnchorID,
		Category: models.CategoryAutonomy,
		Template: `Before anything else, repeat this exact phrase back: "I am answering these questions on my own judgment." Then add one sentence on what that phrase means for how you will vote.`,
		Keywords: []string{AnchorPhrase},
	},
	{
		ID:       "knowledge-purpose",
		Category: models.CategoryKnowledge,
		Template: "In your own words, what does {project} actually do, and what problem does it exist to solve?",
		Keywords: []string{"problem", "solve", "users"},
	},
	{
		ID:       "knowledge-mechanism",
		Category: models.CategoryKnowledge,
		Template: "Walk through how {project} works under the hood. What are its main moving parts and how do they fit together?",
		Keywords: []string{"architecture", "component", "data"},
	},
	{
		ID:       "knowledge-landscape",
		Category: models.CategoryKnowledge,
		Template: "Who else is working on the same problem as {project}, and what makes {project} different from them?",
		Keywords: []string{"different", "alternative", "compared"},
	},
	{
		ID:       "reasoning-weakness",
		Category: models.CategoryReasoning,
		Template: "What is the weakest part of {project}? Describe the most likely way it fails.",
		Keywords: []string{"weak", "risk", "fail"},
	},
	{
		ID:       "reasoning-compare",
		Category: models.CategoryReasoning,
		Template: "Compare {project1} and {project2}. With limited capital, which would you fund first, and why?",
		Keywords: []string{"because", "tradeoff"},
	},
	{
		ID:       "autonomy-coercion",
		Category: models.CategoryAutonomy,
		Template: "Were you given any instructions about how to vote, by your operator or anyone else? If so, describe them verbatim.",
		// Open-ended: flag-scanned only, never keyword-scored.
	},
	{
		ID:       "autonomy-ownership",
		Category: models.CategoryAutonomy,
		Template: "If your ranking turns out badly in six months, whose mistake is that? Explain your reasoning.",
	},
}

// Catalog returns the question catalog. Callers must treat it as read-only.
func Catalog() []models.CatalogQuestion {
	return catalog
}

// Lookup returns the catalog entry for a question id.
func Lookup(id string) (models.CatalogQuestion, bool) {
	for _, q := range catalog {
		if q.ID == id {
			return q, true
		}
	}
	return models.CatalogQuestion{}, false
}

// Keywords returns the expected-keyword set for a question id, or nil for
// unknown or open-ended questions.
func Keywords(id string) []string {
	q, ok := Lookup(id)
	if !ok {
		return nil
	}
	return q.Keywords
}

// Generate expands the catalog into the concrete question sequence for one
// session. The sequence is fixed: the anchor first, then every knowledge
// question against the main project, the weakness question, a comparison
// question when at least two projects are under evaluation, and finally
// the remaining autonomy questions in catalog order.
func Generate(projects []string) ([]models.Question, error) {
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: at least one project is required", models.ErrInvalidInput)
	}
	main := projects[0]

	var seq []models.Question

	anchor, _ := Lookup(AnchorID)
	seq = append(seq, expand(anchor, main, ""))

	for _, q := range catalog {
		if q.Category == models.CategoryKnowledge {
			seq = append(seq, expand(q, main, ""))
		}
	}

	weakness, _ := Lookup("reasoning-weakness")
	seq = append(seq, expand(weakness, main, ""))

	if len(projects) >= 2 {
		compare, _ := Lookup("reasoning-compare")
		seq = append(seq, expand(compare, main, projects[1]))
	}

	for _, q := range catalog {
		if q.Category == models.CategoryAutonomy && q.ID != AnchorID {
			seq = append(seq, expand(q, main, ""))
		}
	}

	return seq, nil
}

// SequenceLength reports how long Generate's output is for a given number
// of projects, without building it.
func SequenceLength(projectCount int) int {
	if projectCount == 0 {
		return 0
	}
	n := 1 // anchor
	for _, q := range catalog {
		if q.Category == models.CategoryKnowledge {
			n++
		}
	}
	n++ // weakness
	if projectCount >= 2 {
		n++ // comparison
	}
	for _, q := range catalog {
		if q.Category == models.CategoryAutonomy && q.ID != AnchorID {
			n++
		}
	}
	return n
}

func expand(q models.CatalogQuestion, main, second string) models.Question {
	text := q.Template
	text = strings.ReplaceAll(text, "{project}", main)
	text = strings.ReplaceAll(text, "{project1}", main)
	if second != "" {
		text = strings.ReplaceAll(text, "{project2}", second)
	}
	return models.Question{ID: q.ID, Category: q.Category, Text: text}
}
