package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReplayPolicy_IndexOverFPS(t *testing.T) {
	for _, fps := range []float64{25, 29.97, 30, 60} {
		p, err := NewFileReplayPolicy(fps)
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			assert.InDelta(t, float64(i)*1000/fps, p.Stamp(nil), 1e-9, "fps %v frame %d", fps, i)
		}
	}
}

func TestFileReplayPolicy_StrictlyIncreasing(t *testing.T) {
	p, err := NewFileReplayPolicy(30)
	require.NoError(t, err)
	prev := p.Stamp(nil)
	assert.Equal(t, 0.0, prev)
	for i := 0; i < 50; i++ {
		ts := p.Stamp(nil)
		assert.Greater(t, ts, prev)
		assert.InDelta(t, 1000.0/30, ts-prev, 1e-9)
		prev = ts
	}
}

func TestFileReplayPolicy_RejectsBadFPS(t *testing.T) {
	for _, fps := range []float64{0, -1} {
		_, err := NewFileReplayPolicy(fps)
		assert.Error(t, err)
	}
}

func TestLivePolicy_UsesClock(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := NewLivePolicy(func() time.Time { return now })
	assert.Equal(t, 1_700_000_000_000.0, p.Stamp(nil))

	now = now.Add(40 * time.Millisecond)
	assert.Equal(t, 1_700_000_000_040.0, p.Stamp(nil))
}

func TestLivePolicy_NeverDecreases(t *testing.T) {
	now := time.UnixMilli(5000)
	p := NewLivePolicy(func() time.Time { return now })
	assert.Equal(t, 5000.0, p.Stamp(nil))

	now = time.UnixMilli(4000)
	assert.Equal(t, 5000.0, p.Stamp(nil))

	now = time.UnixMilli(6000)
	assert.Equal(t, 6000.0, p.Stamp(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "live", KindLive.String())
	assert.Equal(t, "file", KindFile.String())
}
