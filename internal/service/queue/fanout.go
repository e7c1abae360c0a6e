package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Fanout hands each network connection the queue it should drain.
type Fanout interface {
	// Subscribe registers a connection and returns its id and queue.
	Subscribe() (string, *Queue)
	// Unsubscribe releases the connection's queue.
	Unsubscribe(id string)
}

// Shared gives every connection the same queue, so each message is delivered
// to exactly one connection. With more than one client connected the clients
// compete for messages. Messages queued while nobody was connected are stale,
// so they are dropped when the first client arrives.
type Shared struct {
	queue *Queue

	mu      sync.Mutex
	clients int
}

// NewShared wraps q as a single-delivery fanout.
func NewShared(q *Queue) *Shared {
	return &Shared{queue: q}
}

func (s *Shared) Subscribe() (string, *Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients++
	if s.clients == 1 {
		s.queue.Discard()
	}
	return uuid.NewString(), s.queue
}

func (s *Shared) Unsubscribe(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients > 0 {
		s.clients--
	}
}

// Broadcaster copies every message from a source queue into one bounded queue
// per subscriber. A subscriber only gets messages put on the source after it
// subscribed, however far behind the pump is. A full subscriber queue blocks
// the pump, so a slow client throttles the producer the same way a single
// queue would.
type Broadcaster struct {
	source   *Queue
	capacity int

	mu   sync.Mutex
	subs map[string]subscriber
	done bool
}

type subscriber struct {
	queue *Queue
	// since is the number of the last source message enqueued before the
	// subscription
	since uint64
}

// NewBroadcaster creates a broadcaster reading from source. Subscriber queues
// get the given capacity.
func NewBroadcaster(source *Queue, capacity int) *Broadcaster {
	return &Broadcaster{
		source:   source,
		capacity: capacity,
		subs:     make(map[string]subscriber),
	}
}

// Subscribe registers a new subscriber queue. After the source has shut down
// the returned queue is already closed.
func (b *Broadcaster) Subscribe() (string, *Queue) {
	id := uuid.NewString()
	q := New(b.capacity)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		q.Close()
		return id, q
	}
	b.subs[id] = subscriber{queue: q, since: b.source.Enqueued()}
	return id, q
}

// Unsubscribe removes and closes the subscriber queue.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		sub.queue.Close()
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run pumps messages until the source reaches its shutdown sentinel or ctx
// is cancelled. Either way every subscriber queue is closed on return.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.shutdown()

	for {
		e, err := b.source.get(ctx)
		if errors.Is(err, ErrShutdown) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, sub := range b.snapshot() {
			if e.seq <= sub.since {
				continue
			}
			if err := sub.queue.Put(ctx, e.msg); err != nil {
				if errors.Is(err, ErrShutdown) {
					continue
				}
				return err
			}
		}
	}
}

func (b *Broadcaster) snapshot() []subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		out = append(out, sub)
	}
	return out
}

func (b *Broadcaster) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	for _, sub := range b.subs {
		sub.queue.Close()
	}
}
