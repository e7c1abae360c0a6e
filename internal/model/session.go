package model

import "time"

// Session is one run of the streaming server.
type Session struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Transports string     `json:"transports"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     int64      `json:"frames"`
	Messages   int64      `json:"messages"`
	EndReason  string     `json:"end_reason,omitempty"`
}

// Connection is the record of one client connection within a session.
type Connection struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	ConnID         string    `json:"conn_id"`
	Transport      string    `json:"transport"`
	RemoteAddr     string    `json:"remote_addr"`
	ConnectedAt    time.Time `json:"connected_at"`
	DisconnectedAt time.Time `json:"disconnected_at"`
	MessagesSent   int64     `json:"messages_sent"`
}
