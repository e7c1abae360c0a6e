// Package queue holds the bounded FIFO between the encoder and the transports
// and the fan-out strategies that hand it to connections.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 32

// ErrShutdown is returned once the shutdown sentinel has been reached.
var ErrShutdown = errors.New("queue shut down")

// Queue is a bounded FIFO of encoded messages. Put blocks while the queue is
// full, Get blocks while it is empty. Close places the shutdown sentinel
// behind everything already queued.
//
// Every message is numbered when it is enqueued; numbers start at 1 and
// follow queue order.
type Queue struct {
	items   chan entry
	closing chan struct{}
	once    sync.Once

	// putLock serializes Put so numbering matches queue order
	putLock chan struct{}
	seq     atomic.Uint64
}

type entry struct {
	seq uint64
	msg []byte
}

// New creates a queue with a fixed capacity. Non-positive values fall back
// to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items:   make(chan entry, capacity),
		closing: make(chan struct{}),
		putLock: make(chan struct{}, 1),
	}
}

// Put appends msg, waiting for room while the queue is full.
func (q *Queue) Put(ctx context.Context, msg []byte) error {
	if q.Closed() {
		return ErrShutdown
	}
	select {
	case q.putLock <- struct{}{}:
	case <-q.closing:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-q.putLock }()

	n := q.seq.Load() + 1
	select {
	case q.items <- entry{seq: n, msg: msg}:
		q.seq.Store(n)
		return nil
	case <-q.closing:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get removes and returns the oldest message. After Close it keeps returning
// queued messages until they are drained, then ErrShutdown.
func (q *Queue) Get(ctx context.Context) ([]byte, error) {
	e, err := q.get(ctx)
	return e.msg, err
}

func (q *Queue) get(ctx context.Context) (entry, error) {
	select {
	case e := <-q.items:
		return e, nil
	default:
	}

	select {
	case e := <-q.items:
		return e, nil
	case <-q.closing:
		select {
		case e := <-q.items:
			return e, nil
		default:
			return entry{}, ErrShutdown
		}
	case <-ctx.Done():
		return entry{}, ctx.Err()
	}
}

// Enqueued returns the number of the last message put on the queue, 0 if
// none was.
func (q *Queue) Enqueued() uint64 { return q.seq.Load() }

// Discard drops every queued message and returns how many were dropped.
func (q *Queue) Discard() int {
	n := 0
	for {
		select {
		case <-q.items:
			n++
		default:
			return n
		}
	}
}

// Close enqueues the shutdown sentinel. It never blocks and is idempotent.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closing) })
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.closing:
		return true
	default:
		return false
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return len(q.items) }

// Cap returns the fixed capacity.
func (q *Queue) Cap() int { return cap(q.items) }
