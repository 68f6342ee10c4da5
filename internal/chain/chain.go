// Package chain defines the on-chain collaborators at their interface
// boundary: a transaction verifier (opaque oracle) and a treasury
// transfer executor. The core never depends on their internals.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTxNotFound is returned when the chain has no record of a signature.
var ErrTxNotFound = errors.New("transaction not found")

// TransferDetails describes a confirmed SOL transfer.
type TransferDetails struct {
	Signature string  `json:"signature"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	AmountSOL float64 `json:"amount_sol"`
	Slot      uint64  `json:"slot"`
}

// Verifier resolves a transaction signature to transfer details, or
// ErrTxNotFound.
type Verifier interface {
	VerifyTransfer(ctx context.Context, signature string) (*TransferDetails, error)
}

// Treasury executes a SOL transfer and returns the transaction signature.
type Treasury interface {
	Transfer(ctx context.Context, to string, amountSOL float64) (string, error)
}

const lamportsPerSOL = 1_000_000_000

// RPCClient implements Verifier against a Solana JSON-RPC endpoint.
type RPCClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewRPCClient creates a verifier against endpoint. logger may be nil.
func NewRPCClient(endpoint string, logger *zap.Logger) *RPCClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type transactionResult struct {
	Slot        uint64 `json:"slot"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta struct {
		Err          any      `json:"err"`
		PreBalances  []uint64 `json:"preBalances"`
		PostBalances []uint64 `json:"postBalances"`
	} `json:"meta"`
}

// VerifyTransfer queries getTransaction and derives the transfer from the
// first account's balance delta.
func (c *RPCClient) VerifyTransfer(ctx context.Context, signature string) (*TransferDetails, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{signature, map[string]any{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Result) == 0 || string(out.Result) == "null" {
		return nil, ErrTxNotFound
	}

	var tx transactionResult
	if err := json.Unmarshal(out.Result, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if tx.Meta.Err != nil {
		return nil, fmt.Errorf("transaction %s failed on chain", signature)
	}

	details := &TransferDetails{Signature: signature, Slot: tx.Slot}
	keys := tx.Transaction.Message.AccountKeys
	if len(keys) >= 2 {
		details.From = keys[0]
		details.To = keys[1]
	}
	if len(tx.Meta.PreBalances) > 0 && len(tx.Meta.PostBalances) > 0 {
		pre, post := tx.Meta.PreBalances[0], tx.Meta.PostBalances[0]
		if pre > post {
			details.AmountSOL = float64(pre-post) / lamportsPerSOL
		}
	}
	return details, nil
}

// NoopTreasury logs transfers without touching the chain. Stands in for a
// real signer in development and tests.
type NoopTreasury struct {
	logger *zap.Logger
}

// NewNoopTreasury creates a NoopTreasury. logger may be nil.
func NewNoopTreasury(logger *zap.Logger) *NoopTreasury {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopTreasury{logger: logger}
}

// Transfer records the intended transfer and returns a synthetic
// signature.
func (t *NoopTreasury) Transfer(_ context.Context, to string, amountSOL float64) (string, error) {
	sig := "noop-" + uuid.New().String()
	t.logger.Info("treasury transfer (noop)",
		zap.String("to", to),
		zap.Float64("amount_sol", amountSOL),
		zap.String("signature", sig))
	return sig, nil
}
