package source

import (
	"fmt"
	"sync"
	"time"

	"posestream/internal/model"
)

// TimestampPolicy assigns the presentation timestamp, in milliseconds, of
// each frame. Successive values never decrease.
type TimestampPolicy interface {
	Stamp(frame *model.Frame) float64
}

// LivePolicy stamps frames with the wall clock at the time of stamping.
type LivePolicy struct {
	now  func() time.Time
	mu   sync.Mutex
	last float64
}

// NewLivePolicy returns a wall clock policy. A nil now uses time.Now.
func NewLivePolicy(now func() time.Time) *LivePolicy {
	if now == nil {
		now = time.Now
	}
	return &LivePolicy{now: now}
}

// Stamp returns the current time in ms, held at the previous value if the
// clock stepped backwards.
func (p *LivePolicy) Stamp(*model.Frame) float64 {
	ts := float64(p.now().UnixNano()) / float64(time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ts < p.last {
		ts = p.last
	}
	p.last = ts
	return ts
}

// FileReplayPolicy derives timestamps from the frame index and the file's
// nominal frame rate: index*1000/fps.
type FileReplayPolicy struct {
	fps   float64
	mu    sync.Mutex
	index int64
}

// NewFileReplayPolicy returns a replay policy for a file recorded at fps.
func NewFileReplayPolicy(fps float64) (*FileReplayPolicy, error) {
	if !(fps > 0) {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	return &FileReplayPolicy{fps: fps}, nil
}

// FPS returns the frame rate the policy was built with.
func (p *FileReplayPolicy) FPS() float64 {
	return p.fps
}

// Stamp returns the timestamp of the next frame and advances the index.
func (p *FileReplayPolicy) Stamp(*model.Frame) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts := float64(p.index) * 1000 / p.fps
	p.index++
	return ts
}
