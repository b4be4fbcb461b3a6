// internal/archive/archive.go
// Package archive persists monitoring sessions and per-cycle detection
// results to SQLite so captures can be analyzed later.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gfalqueto/crywatch/internal/detect"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    captured_at TIMESTAMP NOT NULL,
    energy      REAL NOT NULL,
    crying      INTEGER NOT NULL,
    forced      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles(session_id);
`

const (
	insertSessionSQL = `INSERT INTO sessions (id, started_at) VALUES (?, ?)`
	insertCycleSQL   = `INSERT INTO cycles (session_id, captured_at, energy, crying, forced) VALUES (?, ?, ?, ?, ?)`
	listSessionsSQL  = `
SELECT s.id, s.started_at,
       COUNT(c.id),
       COALESCE(SUM(c.crying), 0)
FROM sessions s
LEFT JOIN cycles c ON c.session_id = s.id
GROUP BY s.id, s.started_at
ORDER BY s.started_at DESC`
)

// Session summarizes one archived monitoring session.
type Session struct {
	ID         string
	StartedAt  time.Time
	Cycles     int
	Detections int
}

// Store writes detection cycles to a SQLite database. It satisfies
// detect.Observer; write failures are logged, never propagated into the
// detection loop.
type Store struct {
	dbPath    string
	sessionID string
	logger    *slog.Logger

	db       *sql.DB
	openOnce sync.Once
	openErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store for the given database path. The database is
// opened lazily on first use.
func NewStore(dbPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dbPath:    dbPath,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
}

// SessionID returns this store's session identity.
func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) getDB() (*sql.DB, error) {
	s.openOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.openErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.openErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		if _, err = db.Exec(insertSessionSQL, s.sessionID, time.Now().UTC()); err != nil {
			_ = db.Close()
			s.openErr = fmt.Errorf("inserting session: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.openErr
}

// OnCycle records one detection cycle.
func (s *Store) OnCycle(result detect.CycleResult) {
	db, err := s.getDB()
	if err != nil {
		s.logger.Warn("archive unavailable", "error", err)
		return
	}

	_, err = db.Exec(insertCycleSQL,
		s.sessionID, result.Time.UTC(), result.Energy,
		boolToInt(result.Crying), boolToInt(result.Forced))
	if err != nil {
		s.logger.Warn("archive write failed", "error", err)
	}
}

// ListSessions returns all archived sessions, newest first.
func ListSessions(ctx context.Context, dbPath string) ([]Session, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, listSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.Cycles, &sess.Detections); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
