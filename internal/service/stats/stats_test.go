package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := New(8)
	c.InferenceFailed()
	c.PreprocessFailed()
	c.PreprocessFailed()
	c.EmptyResult()
	c.EmptyResult()
	c.PoseTruncated()
	c.MessageEnqueued()
	c.FrameProcessed(10 * time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.Frames)
	assert.Equal(t, int64(1), s.InferenceFailures)
	assert.Equal(t, int64(2), s.PreprocessFailures)
	assert.Equal(t, int64(2), s.EmptyResults)
	assert.Equal(t, int64(1), s.TruncatedPoses)
	assert.Equal(t, int64(1), s.MessagesEnqueued)
}

func TestCollector_LatencyQuantiles(t *testing.T) {
	c := New(100)
	for i := 100; i >= 1; i-- {
		c.FrameProcessed(time.Duration(i) * time.Millisecond)
	}

	s := c.Snapshot()
	assert.InDelta(t, 50.5, s.LatencyMeanMs, 1e-9)
	assert.InDelta(t, 50, s.LatencyP50Ms, 1e-9)
	assert.InDelta(t, 95, s.LatencyP95Ms, 1e-9)
}

func TestCollector_WindowKeepsRecentSamples(t *testing.T) {
	c := New(4)
	for _, ms := range []int{1000, 1000, 1000, 1000, 2, 2, 2, 2} {
		c.FrameProcessed(time.Duration(ms) * time.Millisecond)
	}

	s := c.Snapshot()
	assert.Equal(t, int64(8), s.Frames)
	assert.InDelta(t, 2, s.LatencyMeanMs, 1e-9)
}

func TestCollector_EmptySnapshot(t *testing.T) {
	s := New(0).Snapshot()
	assert.Zero(t, s.Frames)
	assert.Zero(t, s.LatencyMeanMs)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.FrameProcessed(time.Millisecond)
	c.InferenceFailed()
	c.MessageEnqueued()
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestCollector_Concurrent(t *testing.T) {
	c := New(16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.FrameProcessed(time.Millisecond)
				c.MessageEnqueued()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(800), s.Frames)
	assert.Equal(t, int64(800), s.MessagesEnqueued)
}
