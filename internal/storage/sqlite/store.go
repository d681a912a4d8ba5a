// Package sqlite persists measurement outcomes. Each relay run opens a
// session; every measurement the runner produces is appended to it with its
// grid coordinate and arrival order, so outcome distributions can be
// inspected after the fact.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/spinwave-labs/gatelink/internal/message"
)

// Store wraps the measurement log database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the measurement log at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open measurement log %q: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			grid_w            INTEGER,
			grid_h            INTEGER,
			seed              BIGINT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS measurements (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT,
			seq               BIGINT,
			x                 INTEGER,
			y                 INTEGER,
			bit               INTEGER,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_measurements_session
			ON measurements(session_id, seq);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize measurement log schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one relay run's measurement stream. It satisfies the relay's
// MeasurementRecorder contract.
type Session struct {
	store *Store
	ID    string

	mu  sync.Mutex
	seq int64
}

// BeginSession registers a new session for a grid of the given dimensions
// and backend seed, returning a recorder bound to it.
func (s *Store) BeginSession(gridW, gridH int, seed int64) (*Session, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, grid_w, grid_h, seed) VALUES (?, ?, ?, ?)`,
		id, gridW, gridH, seed,
	)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{store: s, ID: id}, nil
}

// RecordMeasurement appends one outcome to the session.
func (sess *Session) RecordMeasurement(c message.Coord, bit bool) error {
	sess.mu.Lock()
	seq := sess.seq
	sess.seq++
	sess.mu.Unlock()

	bitVal := 0
	if bit {
		bitVal = 1
	}
	_, err := sess.store.db.Exec(
		`INSERT INTO measurements (session_id, seq, x, y, bit) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, seq, c.X, c.Y, bitVal,
	)
	if err != nil {
		return fmt.Errorf("record measurement at %v: %w", c, err)
	}
	return nil
}

// SessionInfo describes one recorded session.
type SessionInfo struct {
	ID           string
	GridW        int
	GridH        int
	Seed         int64
	CreatedAt    time.Time
	Measurements int64
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.grid_w, s.grid_h, s.seed, s.created_at,
		       COUNT(m.id)
		FROM sessions s
		LEFT JOIN measurements m ON m.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.GridW, &info.GridH, &info.Seed,
			&info.CreatedAt, &info.Measurements); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}
