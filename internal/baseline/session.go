// Package baseline drives an agent through the baseline test: a fixed
// question sequence, per-answer scoring, and a composite pass/fail score
// that gates the agent's ranked vote.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentfund/baseline/internal/models"
	"github.com/agentfund/baseline/internal/questions"
	"github.com/agentfund/baseline/internal/scoring"
	"github.com/agentfund/baseline/internal/voting"
)

// DefaultPassThreshold is the minimum composite score (out of 30) a
// session must reach for its vote to count. Policy constant, overridable
// via configuration.
const DefaultPassThreshold = 20.0

// SessionStore persists session mutations. The manager writes
// synchronously inside each mutating operation; a nil store disables
// persistence.
type SessionStore interface {
	SaveSession(s *models.Session) error
}

// Manager owns all sessions and serializes mutations per session id, so
// two Answer calls on the same session can never race on the cursor while
// distinct sessions proceed independently.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	locks    map[string]*sync.Mutex

	store     SessionStore
	ledger    *voting.Ledger
	threshold float64
	logger    *zap.Logger
}

// NewManager creates a Manager. store and logger may be nil; a threshold
// of 0 selects DefaultPassThreshold.
func NewManager(store SessionStore, ledger *voting.Ledger, threshold float64, logger *zap.Logger) *Manager {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:  make(map[string]*models.Session),
		locks:     make(map[string]*sync.Mutex),
		store:     store,
		ledger:    ledger,
		threshold: threshold,
		logger:    logger,
	}
}

// Hydrate loads previously persisted sessions. Called once at startup,
// before the manager is shared.
func (m *Manager) Hydrate(sessions map[string]*models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range sessions {
		m.sessions[id] = s
	}
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Total     int    `json:"total_questions"`
}

// Start creates a session for the agent over the given candidate projects
// and returns the first question.
func (m *Manager) Start(agentID string, projects []string) (*StartResult, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", models.ErrInvalidInput)
	}
	seq, err := questions.Generate(projects)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Projects:  append([]string(nil), projects...),
		Questions: seq,
		StartedAt: time.Now().UTC(),
	}

	// Persist before publishing so a concurrent Answer can never race
	// the initial snapshot write.
	if err := m.persist(s); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("baseline session started",
		zap.String("session_id", s.ID),
		zap.String("agent_id", agentID),
		zap.Int("questions", len(seq)))

	return &StartResult{SessionID: s.ID, Question: seq[0].Text, Total: len(seq)}, nil
}

// AnswerResult is returned by Answer: either the next question or, on the
// final answer, the composite score.
type AnswerResult struct {
	Complete bool               `json:"complete"`
	Question string             `json:"question,omitempty"`
	Score    *models.FinalScore `json:"score,omitempty"`
}

// Answer records the agent's answer to the current question and advances
// the cursor. Exhausting the sequence computes the final score and moves
// the session to its terminal state.
func (m *Manager) Answer(sessionID, text string) (*AnswerResult, error) {
	lock, s, err := m.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	if s.Completed {
		return nil, fmt.Errorf("%w: session %s", models.ErrAlreadyCompleted, sessionID)
	}

	q := s.Questions[s.Cursor]
	score, flags := scoring.Evaluate(q.ID, text, questions.Keywords(q.ID))
	s.Answers = append(s.Answers, models.Answer{
		QuestionID: q.ID,
		Text:       text,
		Score:      score,
		Flags:      flags,
	})
	s.Cursor++

	if s.Cursor < len(s.Questions) {
		if err := m.persist(s); err != nil {
			return nil, err
		}
		return &AnswerResult{Question: s.Questions[s.Cursor].Text}, nil
	}

	s.Score = m.finalScore(s)
	s.Completed = true
	if err := m.persist(s); err != nil {
		return nil, err
	}

	m.logger.Info("baseline session completed",
		zap.String("session_id", s.ID),
		zap.String("agent_id", s.AgentID),
		zap.Float64("total", s.Score.Total),
		zap.Bool("passed", s.Score.Passed))

	return &AnswerResult{Complete: true, Score: s.Score}, nil
}

// CompleteResult is returned by Complete.
type CompleteResult struct {
	Passed        bool               `json:"passed"`
	Score         *models.FinalScore `json:"score"`
	VotesRecorded int                `json:"votes_recorded"`
}

// Complete submits the agent's ranked ballot for a finished session. A
// failed session records nothing; a passing one atomically replaces the
// agent's prior ballot in the ledger.
func (m *Manager) Complete(sessionID string, ranking map[string]int) (*CompleteResult, error) {
	lock, s, err := m.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	if !s.Completed {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotCompleted, sessionID)
	}

	if !s.Score.Passed {
		return &CompleteResult{Passed: false, Score: s.Score, VotesRecorded: 0}, nil
	}

	now := time.Now().UTC()
	votes := make([]models.Vote, 0, len(ranking))
	for projectID, rank := range ranking {
		votes = append(votes, models.Vote{
			AgentID:       s.AgentID,
			ProjectID:     projectID,
			Rank:          rank,
			BaselineScore: s.Score.Total,
			SessionID:     s.ID,
			CastAt:        now,
		})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].Rank < votes[j].Rank })

	if err := m.ledger.RecordBallot(s.AgentID, votes); err != nil {
		return nil, err
	}
	return &CompleteResult{Passed: true, Score: s.Score, VotesRecorded: len(votes)}, nil
}

// Get returns a copy of a session by id. The copy is taken under the
// session's lock so audit reads never observe a half-applied answer.
func (m *Manager) Get(sessionID string) (*models.Session, error) {
	lock, s, err := m.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()
	return cloneSession(s), nil
}

// List returns copies of all sessions, newest first. Transparency/audit
// surface.
func (m *Manager) List() []*models.Session {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		if s, err := m.Get(id); err == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneSession(s *models.Session) *models.Session {
	cp := *s
	cp.Projects = append([]string(nil), s.Projects...)
	cp.Questions = append([]models.Question(nil), s.Questions...)
	cp.Answers = append([]models.Answer(nil), s.Answers...)
	if s.Score != nil {
		score := *s.Score
		cp.Score = &score
	}
	return &cp
}

// finalScore averages recorded answers per category and sums the three
// averages. A category with no answers contributes 0. All reported
// numbers are rounded to one decimal.
func (m *Manager) finalScore(s *models.Session) *models.FinalScore {
	type accum struct {
		sum float64
		n   int
	}
	byCategory := make(map[models.Category]*accum, len(models.Categories))
	for _, c := range models.Categories {
		byCategory[c] = &accum{}
	}

	category := make(map[string]models.Category, len(s.Questions))
	for _, q := range s.Questions {
		category[q.ID] = q.Category
	}
	for _, a := range s.Answers {
		if acc, ok := byCategory[category[a.QuestionID]]; ok {
			acc.sum += a.Score
			acc.n++
		}
	}

	avg := func(c models.Category) float64 {
		acc := byCategory[c]
		if acc.n == 0 {
			return 0
		}
		return acc.sum / float64(acc.n)
	}

	knowledge := avg(models.CategoryKnowledge)
	reasoning := avg(models.CategoryReasoning)
	autonomy := avg(models.CategoryAutonomy)
	total := knowledge + reasoning + autonomy

	return &models.FinalScore{
		Knowledge: round1(knowledge),
		Reasoning: round1(reasoning),
		Autonomy:  round1(autonomy),
		Total:     round1(total),
		Passed:    total >= m.threshold,
	}
}

// acquire looks up the session and its per-id lock, creating the lock on
// first use. The caller locks it around the mutation.
func (m *Manager) acquire(sessionID string) (*sync.Mutex, *models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: session %s", models.ErrNotFound, sessionID)
	}
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock, s, nil
}

func (m *Manager) persist(s *models.Session) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveSession(s); err != nil {
		return fmt.Errorf("persist session %s: %w", s.ID, err)
	}
	return nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
