package sqlite

import (
	"fmt"

	"posestream/internal/model"
)

// ConnectionRepository implements repository.ConnectionRepository for SQLite.
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new SQLite connection repository.
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Insert adds a finished connection record.
func (r *ConnectionRepository) Insert(c *model.Connection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO connections (session_id, conn_id, transport, remote_addr, connected_at, disconnected_at, messages_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.SessionID, c.ConnID, c.Transport, c.RemoteAddr, c.ConnectedAt.UTC(), c.DisconnectedAt.UTC(), c.MessagesSent)
	if err != nil {
		return 0, fmt.Errorf("failed to insert connection: %w", err)
	}

	return result.LastInsertId()
}

// ListBySession returns the connections of a session in connection order.
func (r *ConnectionRepository) ListBySession(sessionID string) ([]model.Connection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, session_id, conn_id, transport, remote_addr, connected_at, disconnected_at, messages_sent
		FROM connections WHERE session_id = ? ORDER BY connected_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		var c model.Connection
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ConnID, &c.Transport, &c.RemoteAddr,
			&c.ConnectedAt, &c.DisconnectedAt, &c.MessagesSent); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// CountBySession returns how many connections a session had.
func (r *ConnectionRepository) CountBySession(sessionID string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM connections WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return count, nil
}
