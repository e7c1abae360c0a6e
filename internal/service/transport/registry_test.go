package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posestream/internal/logger"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry(logger.NewDiscard())
	var closed []ConnInfo
	r.OnClose(func(c ConnInfo) { closed = append(closed, c) })

	r.Add("a", "tcp", "10.0.0.1:5000")
	r.Add("b", "ws", "10.0.0.2:5000")
	require.Equal(t, 2, r.Count())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, StateConnected, list[0].State)

	r.Sending("a")
	r.Sent("a")
	r.Sent("a")
	assert.Equal(t, StateSending, r.List()[0].State)

	r.Remove("a")
	r.Remove("a")
	assert.Equal(t, 1, r.Count())
	require.Len(t, closed, 1)
	assert.Equal(t, StateDisconnected, closed[0].State)
	assert.Equal(t, int64(2), closed[0].MessagesSent)
	assert.False(t, closed[0].DisconnectedAt.IsZero())
}

func TestState_Text(t *testing.T) {
	text, err := StateSending.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "sending", string(text))
	assert.Equal(t, "disconnected", StateDisconnected.String())
}
