// Package voting holds the vote ledger and the allocation engine that
// turns aggregated ballots into a proportional split of a fixed pool.
package voting

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agentfund/baseline/internal/models"
)

// BallotStore persists ballot mutations. The ledger writes synchronously
// after each mutation; a nil store disables persistence.
type BallotStore interface {
	SaveBallot(agentID string, votes []models.Vote) error
	DeleteBallots() error
}

// Ledger maps each agent to its single current ballot. Submitting a new
// ballot for an agent replaces the prior one wholesale.
type Ledger struct {
	mu      sync.RWMutex
	ballots map[string][]models.Vote
	store   BallotStore
	logger  *zap.Logger
}

// NewLedger creates an empty ledger. store and logger may be nil.
func NewLedger(store BallotStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		ballots: make(map[string][]models.Vote),
		store:   store,
		logger:  logger,
	}
}

// Hydrate loads previously persisted ballots. Called once at startup,
// before the ledger is shared.
func (l *Ledger) Hydrate(ballots map[string][]models.Vote) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for agentID, votes := range ballots {
		l.ballots[agentID] = votes
	}
}

// RecordBallot replaces the agent's entire ballot with votes.
func (l *Ledger) RecordBallot(agentID string, votes []models.Vote) error {
	if agentID == "" {
		return fmt.Errorf("%w: agent id is required", models.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ballots[agentID] = votes
	if l.store != nil {
		if err := l.store.SaveBallot(agentID, votes); err != nil {
			return fmt.Errorf("persist ballot for %s: %w", agentID, err)
		}
	}
	l.logger.Info("ballot recorded",
		zap.String("agent_id", agentID),
		zap.Int("votes", len(votes)))
	return nil
}

// Ballot returns the agent's current ballot, or nil.
func (l *Ledger) Ballot(agentID string) []models.Vote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ballots[agentID]
}

// AgentCount returns the number of agents with a recorded ballot.
func (l *Ledger) AgentCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ballots)
}

// Results aggregates all current ballots by project: distinct-agent vote
// count, mean authorizing score, mean rank. Sorted by vote count
// descending, ties by ascending mean rank (rank 1 is most preferred),
// then by project id so equal inputs always produce equal output.
func (l *Ledger) Results() []models.ProjectResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	type accum struct {
		count    int
		scoreSum float64
		rankSum  float64
	}
	byProject := make(map[string]*accum)

	for _, votes := range l.ballots {
		for _, v := range votes {
			a := byProject[v.ProjectID]
			if a == nil {
				a = &accum{}
				byProject[v.ProjectID] = a
			}
			a.count++
			a.scoreSum += v.BaselineScore
			a.rankSum += float64(v.Rank)
		}
	}

	results := make([]models.ProjectResult, 0, len(byProject))
	for projectID, a := range byProject {
		results = append(results, models.ProjectResult{
			ProjectID: projectID,
			VoteCount: a.count,
			AvgScore:  a.scoreSum / float64(a.count),
			AvgRank:   a.rankSum / float64(a.count),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		if results[i].AvgRank != results[j].AvgRank {
			return results[i].AvgRank < results[j].AvgRank
		}
		return results[i].ProjectID < results[j].ProjectID
	})
	return results
}

// Reset clears all ballots. Maintenance only, never part of the normal
// vote flow.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ballots = make(map[string][]models.Vote)
	if l.store != nil {
		if err := l.store.DeleteBallots(); err != nil {
			return fmt.Errorf("clear persisted ballots: %w", err)
		}
	}
	l.logger.Info("vote ledger reset")
	return nil
}
