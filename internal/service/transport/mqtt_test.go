package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posestream/internal/logger"
	"posestream/internal/service/queue"
)

func TestMQTTPublisher_ListenFailsWithoutBroker(t *testing.T) {
	// grab a free port and release it so nothing is listening there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	log := logger.NewDiscard()
	p := NewMQTTPublisher("tcp://"+addr, "poses", "test", queue.NewShared(queue.New(1)), NewRegistry(log), log)
	assert.Equal(t, "mqtt", p.Name())
	assert.Error(t, p.Listen())

	// nothing to drain after a failed connect
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestMQTTPublisher_ServeRequiresListen(t *testing.T) {
	log := logger.NewDiscard()
	p := NewMQTTPublisher("tcp://127.0.0.1:1883", "poses", "test", queue.NewShared(queue.New(1)), NewRegistry(log), log)
	assert.Error(t, p.Serve(context.Background()))
}
