package transport

import (
	"sort"
	"sync"
	"time"

	"posestream/internal/logger"
)

// State is the lifecycle of one client connection:
// Connected -> Sending -> (Sending | Disconnected).
type State int

const (
	StateConnected State = iota
	StateSending
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSending:
		return "sending"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnInfo describes one client connection.
type ConnInfo struct {
	ID             string    `json:"id"`
	Transport      string    `json:"transport"`
	RemoteAddr     string    `json:"remote_addr"`
	State          State     `json:"state"`
	ConnectedAt    time.Time `json:"connected_at"`
	DisconnectedAt time.Time `json:"disconnected_at,omitempty"`
	MessagesSent   int64     `json:"messages_sent"`
}

// Registry tracks live connections across all transports.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*ConnInfo
	onClose func(ConnInfo)
	logger  *logger.Logger
}

func NewRegistry(logger *logger.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*ConnInfo),
		logger: logger,
	}
}

// OnClose registers fn to be called with the final record of every
// connection that is removed.
func (r *Registry) OnClose(fn func(ConnInfo)) {
	r.mu.Lock()
	r.onClose = fn
	r.mu.Unlock()
}

// Add registers a new connection in the Connected state.
func (r *Registry) Add(id, transport, remoteAddr string) {
	r.mu.Lock()
	r.conns[id] = &ConnInfo{
		ID:          id,
		Transport:   transport,
		RemoteAddr:  remoteAddr,
		State:       StateConnected,
		ConnectedAt: time.Now(),
	}
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("%s client %s connected. Total: %d", transport, remoteAddr, total)
}

// Sending marks the connection as busy with a message.
func (r *Registry) Sending(id string) {
	r.mu.Lock()
	if c, ok := r.conns[id]; ok {
		c.State = StateSending
	}
	r.mu.Unlock()
}

// Sent counts one delivered message.
func (r *Registry) Sent(id string) {
	r.mu.Lock()
	if c, ok := r.conns[id]; ok {
		c.MessagesSent++
	}
	r.mu.Unlock()
}

// Remove marks the connection Disconnected and forgets it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	onClose := r.onClose
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}
	c.State = StateDisconnected
	c.DisconnectedAt = time.Now()
	r.logger.Info("%s client %s disconnected after %d messages. Total: %d",
		c.Transport, c.RemoteAddr, c.MessagesSent, total)
	if onClose != nil {
		onClose(*c)
	}
}

// List returns the live connections, oldest first.
func (r *Registry) List() []ConnInfo {
	r.mu.RLock()
	out := make([]ConnInfo, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, *c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
