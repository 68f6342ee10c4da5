// Package storage persists baseline state to a single sqlite database.
// Each mutating core operation writes through synchronously; everything
// is loaded wholesale at process start.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/agentfund/baseline/internal/models"
)

// Store wraps the baseline.db database.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Open opens (or creates) baseline.db under dataDir and runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "baseline.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open baseline db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping baseline db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate baseline db: %w", err)
	}

	return &Store{db: db, dataDir: dataDir}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the base data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// SaveSession upserts a session record.
func (s *Store) SaveSession(sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, agent_id, data, updated_at) VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, data = excluded.data, updated_at = datetime('now')`,
		sess.ID, sess.AgentID, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadSessions loads every persisted session, keyed by session id.
func (s *Store) LoadSessions() (map[string]*models.Session, error) {
	rows, err := s.db.Query(`SELECT data FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make(map[string]*models.Session)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess models.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		sessions[sess.ID] = &sess
	}
	return sessions, rows.Err()
}

// SaveBallot upserts an agent's full ballot.
func (s *Store) SaveBallot(agentID string, votes []models.Vote) error {
	data, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("marshal ballot for %s: %w", agentID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO ballots (agent_id, data, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(agent_id) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`,
		agentID, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert ballot for %s: %w", agentID, err)
	}
	return nil
}

// LoadBallots loads every persisted ballot, keyed by agent id.
func (s *Store) LoadBallots() (map[string][]models.Vote, error) {
	rows, err := s.db.Query(`SELECT agent_id, data FROM ballots`)
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	ballots := make(map[string][]models.Vote)
	for rows.Next() {
		var agentID, data string
		if err := rows.Scan(&agentID, &data); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		var votes []models.Vote
		if err := json.Unmarshal([]byte(data), &votes); err != nil {
			return nil, fmt.Errorf("unmarshal ballot for %s: %w", agentID, err)
		}
		ballots[agentID] = votes
	}
	return ballots, rows.Err()
}

// DeleteBallots clears all persisted ballots.
func (s *Store) DeleteBallots() error {
	if _, err := s.db.Exec(`DELETE FROM ballots`); err != nil {
		return fmt.Errorf("delete ballots: %w", err)
	}
	return nil
}

// SaveBinding upserts a credential binding.
func (s *Store) SaveBinding(credentialHash, agentID string) error {
	_, err := s.db.Exec(
		`INSERT INTO bindings (credential_hash, agent_id) VALUES (?, ?)
		 ON CONFLICT(credential_hash) DO UPDATE SET agent_id = excluded.agent_id`,
		credentialHash, agentID,
	)
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

// LoadBindings loads every credential binding, keyed by credential hash.
func (s *Store) LoadBindings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT credential_hash, agent_id FROM bindings`)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	bindings := make(map[string]string)
	for rows.Next() {
		var hash, agentID string
		if err := rows.Scan(&hash, &agentID); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		bindings[hash] = agentID
	}
	return bindings, rows.Err()
}
