package repository

import (
	"time"

	"posestream/internal/model"
)

// SessionRepository records server runs.
type SessionRepository interface {
	// Start inserts a session that has not ended yet.
	Start(s *model.Session) error
	// Finish stamps the end of a session with its final counters.
	Finish(id string, endedAt time.Time, frames, messages int64, reason string) error

	GetByID(id string) (*model.Session, error)
	List(limit int) ([]model.Session, error)
}

// ConnectionRepository records client connections.
type ConnectionRepository interface {
	Insert(c *model.Connection) (int64, error)
	ListBySession(sessionID string) ([]model.Connection, error)
	CountBySession(sessionID string) (int, error)
}
