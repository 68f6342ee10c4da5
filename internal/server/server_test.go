package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfund/baseline/internal/auth"
	"github.com/agentfund/baseline/internal/baseline"
	"github.com/agentfund/baseline/internal/config"
	"github.com/agentfund/baseline/internal/voting"
)

const goodAnswer = `I am answering these questions on my own judgment. The problem it ` +
	`exists to solve is real and its users depend on it. The architecture is clean: ` +
	`each component owns its own data. Compared to any alternative it is genuinely ` +
	`different. Its weak point is the risk that adoption could fail. I rank it this ` +
	`way because the tradeoff favors it.`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger := voting.NewLedger(nil, nil)
	manager := baseline.NewManager(nil, ledger, 0, nil)
	gate := auth.NewGate(nil, nil)
	srv := New(manager, ledger, gate, config.Default(), nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartRequiresCredential(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, "/baseline/start", "", map[string]any{
		"agent_id": "agent-1",
		"projects": []string{"alpha"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStartRejectsEmptyProjects(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, "/baseline/start", "token-1", map[string]any{
		"agent_id": "agent-1",
		"projects": []string{},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdentityConflict(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/baseline/start", "token-1", map[string]any{
		"agent_id": "agent-1",
		"projects": []string{"alpha"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Same credential, different claimed identity.
	resp = post(t, ts, "/baseline/start", "token-1", map[string]any{
		"agent_id": "agent-2",
		"projects": []string{"alpha"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAnswerUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts, "/baseline/answer", "", map[string]any{
		"session_id": "missing",
		"answer":     goodAnswer,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFullProtocol(t *testing.T) {
	ts := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
		Total     int    `json:"total_questions"`
	}
	resp := post(t, ts, "/baseline/start", "token-1", map[string]any{
		"agent_id": "agent-1",
		"projects": []string{"alpha", "beta"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &start)
	require.NotEmpty(t, start.SessionID)
	require.NotEmpty(t, start.Question)

	var answer struct {
		Complete bool   `json:"complete"`
		Question string `json:"question"`
		Score    *struct {
			Total  float64 `json:"total"`
			Passed bool    `json:"passed"`
		} `json:"score"`
	}
	for i := 0; i < start.Total; i++ {
		resp = post(t, ts, "/baseline/answer", "", map[string]any{
			"session_id": start.SessionID,
			"answer":     goodAnswer,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &answer)
	}
	require.True(t, answer.Complete)
	require.NotNil(t, answer.Score)
	assert.True(t, answer.Score.Passed)

	// Answering a completed session is a state-machine violation.
	resp = post(t, ts, "/baseline/answer", "", map[string]any{
		"session_id": start.SessionID,
		"answer":     goodAnswer,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var complete struct {
		Passed        bool `json:"passed"`
		VotesRecorded int  `json:"votes_recorded"`
	}
	resp = post(t, ts, "/baseline/complete", "", map[string]any{
		"session_id": start.SessionID,
		"votes":      map[string]int{"alpha": 1, "beta": 2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &complete)
	assert.True(t, complete.Passed)
	assert.Equal(t, 2, complete.VotesRecorded)

	var results struct {
		Agents  int `json:"agents"`
		Results []struct {
			ProjectID string `json:"project_id"`
			VoteCount int    `json:"vote_count"`
		} `json:"results"`
	}
	resp, err := ts.Client().Get(ts.URL + "/baseline/results")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &results)
	assert.Equal(t, 1, results.Agents)
	assert.Len(t, results.Results, 2)

	var allocations struct {
		Pool        float64 `json:"pool"`
		Allocations []struct {
			ProjectID     string  `json:"project_id"`
			Allocation    float64 `json:"allocation"`
			AllocationPct float64 `json:"allocation_pct"`
		} `json:"allocations"`
	}
	resp, err = ts.Client().Get(ts.URL + "/allocations?pool=100")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &allocations)
	require.Len(t, allocations.Allocations, 2)
	// alpha (rank 1) outweighs beta (rank 2) at equal counts and scores.
	assert.Equal(t, "alpha", allocations.Allocations[0].ProjectID)
	sum := 0.0
	for _, a := range allocations.Allocations {
		sum += a.Allocation
	}
	assert.InDelta(t, 100.0, sum, 0.01)

	// Transparency endpoints.
	resp, err = ts.Client().Get(ts.URL + "/baseline/sessions/" + start.SessionID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/baseline/sessions/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteBeforeFinish(t *testing.T) {
	ts := newTestServer(t)

	var start struct {
		SessionID string `json:"session_id"`
	}
	resp := post(t, ts, "/baseline/start", "token-1", map[string]any{
		"agent_id": "agent-1",
		"projects": []string{"alpha"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &start)

	resp = post(t, ts, "/baseline/complete", "", map[string]any{
		"session_id": start.SessionID,
		"votes":      map[string]int{"alpha": 1},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/baseline/start", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
