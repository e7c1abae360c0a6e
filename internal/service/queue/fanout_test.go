package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShared_SameQueue(t *testing.T) {
	q := New(2)
	s := NewShared(q)

	id1, q1 := s.Subscribe()
	id2, q2 := s.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Same(t, q, q1)
	assert.Same(t, q, q2)

	s.Unsubscribe(id1)
	assert.False(t, q.Closed())
}

func TestBroadcaster_DeliversToEverySubscriber(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := New(4)
	b := NewBroadcaster(source, 4)
	_, a := b.Subscribe()
	_, c := b.Subscribe()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, source.Put(ctx, msg(i)))
	}
	source.Close()

	for _, q := range []*Queue{a, c} {
		for i := 0; i < 3; i++ {
			got, err := q.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, msg(i), got)
		}
		_, err := q.Get(ctx)
		assert.ErrorIs(t, err, ErrShutdown)
	}

	require.NoError(t, <-done)

	_, late := b.Subscribe()
	assert.True(t, late.Closed())
}

func TestBroadcaster_LateSubscriberSeesOnlyNewMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := New(4)
	b := NewBroadcaster(source, 4)
	_, early := b.Subscribe()
	go b.Run(ctx)

	require.NoError(t, source.Put(ctx, msg(0)))
	got, err := early.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(0), got)

	_, late := b.Subscribe()
	require.NoError(t, source.Put(ctx, msg(1)))

	got, err = late.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(1), got)

	got, err = early.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(1), got)
}

func TestBroadcaster_UnsubscribeDoesNotStallPump(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := New(4)
	b := NewBroadcaster(source, 1)
	stuckID, stuck := b.Subscribe()
	_, live := b.Subscribe()
	go b.Run(ctx)

	require.NoError(t, source.Put(ctx, msg(0)))
	got, err := live.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(0), got)

	// stuck never drains; once it is gone the pump must move on
	b.Unsubscribe(stuckID)
	assert.True(t, stuck.Closed())
	assert.Equal(t, 1, b.Subscribers())

	require.NoError(t, source.Put(ctx, msg(1)))
	got, err = live.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(1), got)
}

func TestBroadcaster_SubscriberJoiningBehindStalledPumpSkipsBacklog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := New(4)
	b := NewBroadcaster(source, 1)
	_, slow := b.Subscribe()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	// slow never reads yet, so the pump stalls with older messages still queued
	for i := 0; i < 4; i++ {
		require.NoError(t, source.Put(ctx, msg(i)))
	}
	_, late := b.Subscribe()
	require.NoError(t, source.Put(ctx, msg(4)))

	for i := 0; i < 5; i++ {
		got, err := slow.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, msg(i), got)
	}

	got, err := late.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(4), got)

	source.Close()
	_, err = late.Get(ctx)
	assert.ErrorIs(t, err, ErrShutdown)
	require.NoError(t, <-done)
}

func TestShared_FirstClientDropsStaleBacklog(t *testing.T) {
	ctx := context.Background()
	q := New(4)
	s := NewShared(q)

	require.NoError(t, q.Put(ctx, msg(0)))
	require.NoError(t, q.Put(ctx, msg(1)))

	first, _ := s.Subscribe()
	assert.Zero(t, q.Len())

	// a second client joins the running stream and drops nothing
	require.NoError(t, q.Put(ctx, msg(2)))
	second, _ := s.Subscribe()
	assert.Equal(t, 1, q.Len())

	s.Unsubscribe(first)
	s.Unsubscribe(second)
	require.NoError(t, q.Put(ctx, msg(3)))

	_, again := s.Subscribe()
	assert.Same(t, q, again)
	assert.Zero(t, q.Len())

	require.NoError(t, q.Put(ctx, msg(4)))
	got, err := again.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg(4), got)
}
