// Package auth implements the identity-binding gate: a bearer credential
// is bound to an agent identity on first use and must present the same
// identity forever after.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentfund/baseline/internal/models"
)

// BindingStore persists credential bindings. A nil store disables
// persistence.
type BindingStore interface {
	SaveBinding(credentialHash, agentID string) error
}

// Gate maps hashed bearer credentials to agent identities. Raw
// credentials are never stored.
type Gate struct {
	mu       sync.RWMutex
	bindings map[string]string // sha256(credential) hex → agent id
	store    BindingStore
	logger   *zap.Logger
}

// NewGate creates an empty gate. store and logger may be nil.
func NewGate(store BindingStore, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		bindings: make(map[string]string),
		store:    store,
		logger:   logger,
	}
}

// Hydrate loads previously persisted bindings, keyed by credential hash.
func (g *Gate) Hydrate(bindings map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for hash, agentID := range bindings {
		g.bindings[hash] = agentID
	}
}

// Bind resolves a credential to an agent identity. The first use of a
// credential binds it permanently to claimedAgentID; any later call with
// a different claimed identity fails with models.ErrIdentityConflict,
// reporting the bound identity for transparency.
func (g *Gate) Bind(credential, claimedAgentID string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: missing bearer credential", models.ErrUnauthorized)
	}
	hash := hashCredential(credential)

	g.mu.Lock()
	defer g.mu.Unlock()

	if bound, ok := g.bindings[hash]; ok {
		if claimedAgentID != "" && claimedAgentID != bound {
			return "", fmt.Errorf("%w: credential is bound to agent %q", models.ErrIdentityConflict, bound)
		}
		return bound, nil
	}

	if claimedAgentID == "" {
		return "", fmt.Errorf("%w: agent id is required on first use of a credential", models.ErrInvalidInput)
	}

	g.bindings[hash] = claimedAgentID
	if g.store != nil {
		if err := g.store.SaveBinding(hash, claimedAgentID); err != nil {
			delete(g.bindings, hash)
			return "", fmt.Errorf("persist binding: %w", err)
		}
	}
	g.logger.Info("credential bound", zap.String("agent_id", claimedAgentID))
	return claimedAgentID, nil
}

// BearerToken extracts the bearer credential from an HTTP request, or ""
// if the Authorization header is missing or malformed.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func hashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
