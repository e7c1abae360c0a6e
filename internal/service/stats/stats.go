// Package stats counts pipeline events and summarises inference latency.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the number of recent latency samples kept.
const DefaultWindow = 512

// Collector is safe for concurrent use. A nil *Collector ignores all events.
type Collector struct {
	frames    atomic.Int64
	failures  atomic.Int64
	prepFails atomic.Int64
	empty     atomic.Int64
	truncated atomic.Int64
	enqueued  atomic.Int64

	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	started time.Time
	now     func() time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Frames             int64   `json:"frames"`
	InferenceFailures  int64   `json:"inference_failures"`
	PreprocessFailures int64   `json:"preprocess_failures"`
	EmptyResults       int64   `json:"empty_results"`
	TruncatedPoses     int64   `json:"truncated_poses"`
	MessagesEnqueued   int64   `json:"messages_enqueued"`
	LatencyMeanMs      float64 `json:"latency_mean_ms"`
	LatencyP50Ms       float64 `json:"latency_p50_ms"`
	LatencyP95Ms       float64 `json:"latency_p95_ms"`
	FPS                float64 `json:"fps"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// New returns a collector keeping the last window latency samples.
func New(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{
		samples: make([]float64, window),
		started: time.Now(),
		now:     time.Now,
	}
}

// FrameProcessed records one successful inference and how long it took.
func (c *Collector) FrameProcessed(latency time.Duration) {
	if c == nil {
		return
	}
	c.frames.Add(1)

	c.mu.Lock()
	c.samples[c.next] = float64(latency) / float64(time.Millisecond)
	c.next++
	if c.next == len(c.samples) {
		c.next = 0
		c.full = true
	}
	c.mu.Unlock()
}

// InferenceFailed records a skipped frame.
func (c *Collector) InferenceFailed() {
	if c != nil {
		c.failures.Add(1)
	}
}

// PreprocessFailed records a frame dropped before inference.
func (c *Collector) PreprocessFailed() {
	if c != nil {
		c.prepFails.Add(1)
	}
}

// EmptyResult records a frame with no detected pose.
func (c *Collector) EmptyResult() {
	if c != nil {
		c.empty.Add(1)
	}
}

// PoseTruncated records a frame whose extra poses were not sent.
func (c *Collector) PoseTruncated() {
	if c != nil {
		c.truncated.Add(1)
	}
}

// MessageEnqueued records a message handed to the distribution queue.
func (c *Collector) MessageEnqueued() {
	if c != nil {
		c.enqueued.Add(1)
	}
}

// Snapshot returns the current counters and latency summary.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Frames:             c.frames.Load(),
		InferenceFailures:  c.failures.Load(),
		PreprocessFailures: c.prepFails.Load(),
		EmptyResults:       c.empty.Load(),
		TruncatedPoses:     c.truncated.Load(),
		MessagesEnqueued:   c.enqueued.Load(),
	}

	c.mu.Lock()
	n := c.next
	if c.full {
		n = len(c.samples)
	}
	window := make([]float64, n)
	copy(window, c.samples[:n])
	uptime := c.now().Sub(c.started)
	c.mu.Unlock()

	if uptime > 0 {
		s.UptimeSeconds = uptime.Seconds()
		s.FPS = float64(s.Frames) / s.UptimeSeconds
	}
	if len(window) == 0 {
		return s
	}

	// Quantile needs sorted input
	sort.Float64s(window)
	s.LatencyMeanMs = stat.Mean(window, nil)
	s.LatencyP50Ms = stat.Quantile(0.5, stat.Empirical, window, nil)
	s.LatencyP95Ms = stat.Quantile(0.95, stat.Empirical, window, nil)
	return s
}
