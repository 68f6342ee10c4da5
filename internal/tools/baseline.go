// Package tools exposes the baseline protocol as MCP tools, so agent
// callers can take the test over MCP instead of HTTP.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentfund/baseline/internal/baseline"
	"github.com/agentfund/baseline/internal/config"
	"github.com/agentfund/baseline/internal/models"
	"github.com/agentfund/baseline/internal/voting"
)

// BaselineTools holds references needed by the baseline tool handlers.
// The MCP transport is a trusted local channel; identity binding applies
// on the HTTP surface only.
type BaselineTools struct {
	Manager *baseline.Manager
	Ledger  *voting.Ledger
	Cfg     config.Config
}

// --- Input types ---

type StartInput struct {
	AgentID  string   `json:"agent_id" jsonschema:"Identity of the agent taking the baseline test"`
	Projects []string `json:"projects" jsonschema:"Candidate project names, main project first"`
}

type AnswerInput struct {
	SessionID string `json:"session_id" jsonschema:"Session id returned by baseline_start"`
	Answer    string `json:"answer" jsonschema:"Answer to the current question"`
}

type CompleteInput struct {
	SessionID string         `json:"session_id" jsonschema:"Session id of a finished baseline test"`
	Votes     map[string]int `json:"votes" jsonschema:"Ranked ballot: project name to rank, 1 is most preferred"`
}

type AllocationsInput struct {
	Pool     float64 `json:"pool,omitempty" jsonschema:"Pool amount in SOL; 0 uses the configured pool"`
	MinVotes int     `json:"min_votes,omitempty" jsonschema:"Minimum vote count for a project to be eligible"`
	TopN     int     `json:"top_n,omitempty" jsonschema:"Keep only the N largest allocations; 0 keeps all"`
}

// --- Handlers ---

func (t *BaselineTools) Start(_ context.Context, _ *mcp.CallToolRequest, input StartInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Manager.Start(input.AgentID, input.Projects)
	if err != nil {
		return toolError("Failed to start baseline test: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *BaselineTools) Answer(_ context.Context, _ *mcp.CallToolRequest, input AnswerInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Manager.Answer(input.SessionID, input.Answer)
	if err != nil {
		return toolError("Failed to record answer: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *BaselineTools) Complete(_ context.Context, _ *mcp.CallToolRequest, input CompleteInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Manager.Complete(input.SessionID, input.Votes)
	if err != nil {
		return toolError("Failed to submit ballot: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *BaselineTools) Results(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	results := t.Ledger.Results()
	if results == nil {
		results = []models.ProjectResult{}
	}
	return toolJSON(results)
}

func (t *BaselineTools) Allocations(_ context.Context, _ *mcp.CallToolRequest, input AllocationsInput) (*mcp.CallToolResult, any, error) {
	pool := input.Pool
	if pool <= 0 {
		pool = t.Cfg.Pool.Amount
	}
	minVotes := input.MinVotes
	if minVotes < 1 {
		minVotes = t.Cfg.Pool.MinVotes
	}
	topN := input.TopN
	if topN <= 0 {
		topN = t.Cfg.Pool.TopN
	}

	allocations, err := voting.CalculateAllocations(t.Ledger.Results(), pool, voting.AllocateOptions{
		MinVotes: minVotes,
		TopN:     topN,
	})
	if err != nil {
		return toolError("Failed to calculate allocations: %v", err), nil, nil
	}
	return toolJSON(allocations)
}

// NewMCPServer creates a fully configured MCP server with all baseline
// tools registered.
func NewMCPServer(manager *baseline.Manager, ledger *voting.Ledger, cfg config.Config) *mcp.Server {
	bt := &BaselineTools{Manager: manager, Ledger: ledger, Cfg: cfg}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "baseline",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "baseline_start",
		Description: "Start a baseline verification test over a list of candidate projects; returns the first question",
	}, bt.Start)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "baseline_answer",
		Description: "Answer the current baseline question; returns the next question or the final score",
	}, bt.Answer)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "baseline_complete",
		Description: "Submit a ranked project ballot for a finished baseline test (only passing tests count)",
	}, bt.Complete)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "baseline_results",
		Description: "Aggregated per-project vote results across all agents' current ballots",
	}, bt.Results)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "fund_allocations",
		Description: "Proportional SOL allocation of the pool across eligible projects, weighted by votes, scores and ranks",
	}, bt.Allocations)

	return srv
}

// --- Helpers ---

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
