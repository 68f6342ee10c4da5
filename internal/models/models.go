package models

import "time"

// Category classifies a baseline question.
type Category string

const (
	CategoryKnowledge Category = "knowledge"
	CategoryReasoning Category = "reasoning"
	CategoryAutonomy  Category = "autonomy"
)

// Categories lists all question categories in scoring order.
var Categories = []Category{CategoryKnowledge, CategoryReasoning, CategoryAutonomy}

// CatalogQuestion is an immutable question template in the catalog.
// Templates may contain {project}, {project1} and {project2} placeholders.
type CatalogQuestion struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Template string   `json:"template"`
	Keywords []string `json:"keywords,omitempty"`
}

// Question is a concrete question in a session's sequence, expanded from
// a catalog entry against the session's candidate projects.
type Question struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Answer is one recorded answer within a session.
type Answer struct {
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Score      float64  `json:"score"`
	Flags      []string `json:"flags,omitempty"`
}

// FinalScore is the composite result computed when a session completes.
// Sub-scores are per-category averages; Total is their sum in [0,30].
type FinalScore struct {
	Knowledge float64 `json:"knowledge"`
	Reasoning float64 `json:"reasoning"`
	Autonomy  float64 `json:"autonomy"`
	Total     float64 `json:"total"`
	Passed    bool    `json:"passed"`
}

// Session is one agent's run through the baseline test.
type Session struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agent_id"`
	Projects  []string    `json:"projects"`
	Questions []Question  `json:"questions"`
	Answers   []Answer    `json:"answers"`
	Cursor    int         `json:"cursor"`
	StartedAt time.Time   `json:"started_at"`
	Completed bool        `json:"completed"`
	Score     *FinalScore `json:"score,omitempty"`
}

// Vote is a single (agent, project, rank) entry in a ballot. The baseline
// score and session id record what authorized it.
type Vote struct {
	AgentID       string    `json:"agent_id"`
	ProjectID     string    `json:"project_id"`
	Rank          int       `json:"rank"`
	BaselineScore float64   `json:"baseline_score"`
	SessionID     string    `json:"session_id"`
	CastAt        time.Time `json:"cast_at"`
}

// ProjectResult is the per-project aggregate over all current ballots.
// Derived on demand, never persisted.
type ProjectResult struct {
	ProjectID string  `json:"project_id"`
	VoteCount int     `json:"vote_count"`
	AvgScore  float64 `json:"avg_score"`
	AvgRank   float64 `json:"avg_rank"`
}

// Allocation is one project's share of the pool.
type Allocation struct {
	ProjectID     string  `json:"project_id"`
	Weight        float64 `json:"weight"`
	Allocation    float64 `json:"allocation"`
	AllocationPct float64 `json:"allocation_pct"`
	VoteCount     int     `json:"vote_count"`
}
