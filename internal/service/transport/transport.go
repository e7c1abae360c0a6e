// Package transport delivers encoded detection messages to network clients.
// Every transport drains a queue obtained from a queue.Fanout and sends each
// message as it comes; a failed send closes only that connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"posestream/internal/service/queue"
)

// Server is a transport binding. Listen binds and fails fast so that every
// binding can be bound before any of them serves.
type Server interface {
	Name() string
	Listen() error
	// Serve runs until Shutdown completes or ctx is cancelled. Cancelling
	// ctx drops every open connection.
	Serve(ctx context.Context) error
	// Shutdown stops accepting clients and waits for open connections to
	// drain their queues. When ctx expires they are dropped.
	Shutdown(ctx context.Context) error
}

// Run listens and serves s until ctx is cancelled.
func Run(ctx context.Context, s Server) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// drain sends every message from q until the queue shuts down, ctx ends or
// send fails. It returns queue.ErrShutdown after the last queued message.
func drain(ctx context.Context, id string, q *queue.Queue, registry *Registry, send func([]byte) error) error {
	for {
		msg, err := q.Get(ctx)
		if err != nil {
			return err
		}
		registry.Sending(id)
		if err := send(msg); err != nil {
			return err
		}
		registry.Sent(id)
	}
}

// tracker counts connection handlers and refuses new ones once closing.
type tracker struct {
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup

	// connCtx is cancelled to drop every connection at once.
	connCtx  context.Context
	dropConn context.CancelFunc
}

func newTracker() *tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &tracker{connCtx: ctx, dropConn: cancel}
}

func (t *tracker) add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *tracker) done() { t.wg.Done() }

// close refuses new handlers and waits for the running ones, dropping them
// if ctx expires first.
func (t *tracker) close(ctx context.Context) error {
	t.mu.Lock()
	t.closing = true
	t.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		t.dropConn()
		<-finished
		return fmt.Errorf("connections dropped: %w", ctx.Err())
	}
}

// endReason describes why a send loop stopped, for logging.
func endReason(err error) string {
	switch {
	case errors.Is(err, queue.ErrShutdown):
		return "stream finished"
	case errors.Is(err, context.Canceled):
		return "shutting down"
	default:
		return err.Error()
	}
}
