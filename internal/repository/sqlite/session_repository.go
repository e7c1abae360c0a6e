package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"posestream/internal/model"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start inserts a new session record.
func (r *SessionRepository) Start(s *model.Session) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO sessions (id, source, transports, started_at)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.Source, s.Transports, s.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Finish records the end of a session.
func (r *SessionRepository) Finish(id string, endedAt time.Time, frames, messages int64, reason string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE sessions SET ended_at = ?, frames = ?, messages = ?, end_reason = ?
		WHERE id = ?
	`, endedAt.UTC(), frames, messages, reason, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(id string) (*model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, source, transports, started_at, ended_at, frames, messages, end_reason
		FROM sessions WHERE id = ?
	`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, err
}

// List returns at most limit sessions, most recent first. A limit of 0 or
// less returns every session.
func (r *SessionRepository) List(limit int) ([]model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Conn().Query(`
		SELECT id, source, transports, started_at, ended_at, frames, messages, end_reason
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	var endedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.Source, &s.Transports, &s.StartedAt, &endedAt, &s.Frames, &s.Messages, &s.EndReason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}
