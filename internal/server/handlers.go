package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentfund/baseline/internal/auth"
	"github.com/agentfund/baseline/internal/models"
	"github.com/agentfund/baseline/internal/voting"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	AgentID  string   `json:"agent_id"`
	Projects []string `json:"projects"`
}

// handleStart runs the identity-binding gate before the core ever sees
// the request, then opens a session.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", models.ErrInvalidInput))
		return
	}

	agentID, err := s.gate.Bind(auth.BearerToken(r), req.AgentID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.manager.Start(agentID, req.Projects)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", models.ErrInvalidInput))
		return
	}

	result, err := s.manager.Answer(req.SessionID, req.Answer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type completeRequest struct {
	SessionID string         `json:"session_id"`
	Votes     map[string]int `json:"votes"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", models.ErrInvalidInput))
		return
	}

	result, err := s.manager.Complete(req.SessionID, req.Votes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results := s.ledger.Results()
	if results == nil {
		results = []models.ProjectResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents":  s.ledger.AgentCount(),
		"results": results,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleAllocations computes a fresh allocation from the current ledger
// and the configured pool. Query params pool, min_votes and top_n
// override the configuration for one run.
func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	pool := s.cfg.Pool.Amount
	opts := voting.AllocateOptions{MinVotes: s.cfg.Pool.MinVotes, TopN: s.cfg.Pool.TopN}

	q := r.URL.Query()
	if v := q.Get("pool"); v != "" {
		if _, err := fmt.Sscanf(v, "%f", &pool); err != nil {
			s.writeError(w, fmt.Errorf("%w: bad pool value %q", models.ErrInvalidInput, v))
			return
		}
	}
	if v := q.Get("min_votes"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &opts.MinVotes); err != nil {
			s.writeError(w, fmt.Errorf("%w: bad min_votes value %q", models.ErrInvalidInput, v))
			return
		}
	}
	if v := q.Get("top_n"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &opts.TopN); err != nil {
			s.writeError(w, fmt.Errorf("%w: bad top_n value %q", models.ErrInvalidInput, v))
			return
		}
	}

	allocations, err := voting.CalculateAllocations(s.ledger.Results(), pool, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":        pool,
		"allocations": allocations,
	})
}
