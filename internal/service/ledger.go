package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/repository"
	"posestream/internal/service/stats"
	"posestream/internal/service/transport"
)

// Ledger records the server session and every client connection it served.
type Ledger struct {
	sessions    repository.SessionRepository
	connections repository.ConnectionRepository
	logger      *logger.Logger

	mu      sync.Mutex
	session *model.Session
}

func NewLedger(sessions repository.SessionRepository, connections repository.ConnectionRepository, logger *logger.Logger) *Ledger {
	return &Ledger{sessions: sessions, connections: connections, logger: logger}
}

// Begin starts a new session and returns its id.
func (l *Ledger) Begin(source, transports string) (string, error) {
	s := &model.Session{
		ID:         uuid.NewString(),
		Source:     source,
		Transports: transports,
		StartedAt:  time.Now(),
	}
	if err := l.sessions.Start(s); err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}

	l.mu.Lock()
	l.session = s
	l.mu.Unlock()
	l.logger.Info("Session %s started", s.ID)
	return s.ID, nil
}

// ConnectionClosed stores the final record of a client connection. It is
// meant for transport.Registry.OnClose.
func (l *Ledger) ConnectionClosed(info transport.ConnInfo) {
	l.mu.Lock()
	s := l.session
	l.mu.Unlock()
	if s == nil {
		return
	}

	_, err := l.connections.Insert(&model.Connection{
		SessionID:      s.ID,
		ConnID:         info.ID,
		Transport:      info.Transport,
		RemoteAddr:     info.RemoteAddr,
		ConnectedAt:    info.ConnectedAt,
		DisconnectedAt: info.DisconnectedAt,
		MessagesSent:   info.MessagesSent,
	})
	if err != nil {
		l.logger.Error("Failed to record connection %s: %v", info.ID, err)
	}
}

// End closes the session with the final counters.
func (l *Ledger) End(snap stats.Snapshot, reason string) {
	l.mu.Lock()
	s := l.session
	l.mu.Unlock()
	if s == nil {
		return
	}
	if err := l.sessions.Finish(s.ID, time.Now(), snap.Frames, snap.MessagesEnqueued, reason); err != nil {
		l.logger.Error("Failed to finish session %s: %v", s.ID, err)
		return
	}
	l.logger.Info("Session %s finished: %s", s.ID, reason)
}
