package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/protocol"
	"posestream/internal/protocol/detection"
	"posestream/internal/service/queue"
	"posestream/internal/service/receiver"
)

func pose(n int) []model.PoseDetection {
	lms := make([]model.Landmark, n)
	for i := range lms {
		lms[i] = model.Landmark{X: float32(i) / 10, Y: 0.5, Availability: model.Availability{Visibility: 1, Presence: 1}}
	}
	return []model.PoseDetection{{Landmarks: lms}}
}

// scenario encodes frames with 0, 1 and 1 detected poses.
func scenario() [][]byte {
	enc := protocol.NewEncoder()
	return [][]byte{
		enc.Encode(&model.FrameResult{Timestamp: 0, Valid: true}),
		enc.Encode(&model.FrameResult{Timestamp: 33, Valid: true, Poses: pose(33)}),
		enc.Encode(&model.FrameResult{Timestamp: 67, Valid: true, Poses: pose(33)}),
	}
}

func startTCP(t *testing.T, fanout queue.Fanout) (*TCPServer, *Registry) {
	t.Helper()
	log := logger.NewDiscard()
	registry := NewRegistry(log)
	srv := NewTCPServer("127.0.0.1:0", fanout, registry, log, time.Second)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(served)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	return srv, registry
}

func dialTCP(t *testing.T, srv *TCPServer) *receiver.TCPStream {
	t.Helper()
	s, err := receiver.DialTCP(context.Background(), srv.Addr().String(), logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func readPayload(t *testing.T, s receiver.PayloadStream) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := s.NextPayload(ctx)
	require.NoError(t, err)
	return p
}

func expectEOF(t *testing.T, s receiver.PayloadStream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.NextPayload(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func waitForClients(t *testing.T, registry *Registry, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return registry.Count() == n }, 5*time.Second, 5*time.Millisecond)
}

func TestTCP_ScenarioOnTheWire(t *testing.T) {
	q := queue.New(8)
	srv, registry := startTCP(t, queue.NewShared(q))
	client := dialTCP(t, srv)
	waitForClients(t, registry, 1)

	msgs := scenario()
	for _, m := range msgs {
		require.NoError(t, q.Put(context.Background(), m))
	}
	q.Close()

	want := []detection.DetectionPayload{
		detection.DetectionPayloadEmpty,
		detection.DetectionPayloadPoseDetectionResult,
		detection.DetectionPayloadPoseDetectionResult,
	}
	for i, payload := range want {
		got := readPayload(t, client)
		assert.Equal(t, msgs[i], got)
		decoded, err := protocol.Decode(got)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded.Payload)
	}
	expectEOF(t, client)
}

func TestTCP_MidStreamClientSeesOnlyNewMessages(t *testing.T) {
	src := queue.New(8)
	b := queue.NewBroadcaster(src, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	srv, registry := startTCP(t, b)
	first := dialTCP(t, srv)
	waitForClients(t, registry, 1)

	require.NoError(t, src.Put(ctx, []byte("m1")))
	assert.Equal(t, []byte("m1"), readPayload(t, first))

	second := dialTCP(t, srv)
	waitForClients(t, registry, 2)

	require.NoError(t, src.Put(ctx, []byte("m2")))
	assert.Equal(t, []byte("m2"), readPayload(t, first))
	assert.Equal(t, []byte("m2"), readPayload(t, second))

	src.Close()
	expectEOF(t, first)
	expectEOF(t, second)
}

func TestTCP_DisconnectAffectsOnlyThatClient(t *testing.T) {
	src := queue.New(8)
	b := queue.NewBroadcaster(src, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	srv, registry := startTCP(t, b)
	leaving := dialTCP(t, srv)
	staying := dialTCP(t, srv)
	waitForClients(t, registry, 2)

	leaving.Close()
	waitForClients(t, registry, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, src.Put(ctx, []byte{byte(i + 1)}))
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, []byte{byte(i + 1)}, readPayload(t, staying))
	}
	assert.Eventually(t, func() bool { return b.Subscribers() == 1 }, 5*time.Second, 5*time.Millisecond)
}

func TestTCP_ShutdownDrainsQueuedMessages(t *testing.T) {
	q := queue.New(8)
	srv, registry := startTCP(t, queue.NewShared(q))
	client := dialTCP(t, srv)
	waitForClients(t, registry, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(context.Background(), []byte{byte(i)}))
	}
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	for i := 0; i < 3; i++ {
		assert.Equal(t, []byte{byte(i)}, readPayload(t, client))
	}
	expectEOF(t, client)
	assert.Zero(t, registry.Count())
}

func TestTCP_ListenFailsWhenPortTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	log := logger.NewDiscard()
	srv := NewTCPServer(ln.Addr().String(), queue.NewShared(queue.New(1)), NewRegistry(log), log, 0)
	assert.Error(t, srv.Listen())
}

func TestWebSocket_ScenarioOnTheWire(t *testing.T) {
	log := logger.NewDiscard()
	q := queue.New(8)
	registry := NewRegistry(log)
	srv := NewWSServer("127.0.0.1:0", "/", queue.NewShared(q), registry, log, time.Second)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client, err := receiver.DialWebSocket(context.Background(), "ws://"+srv.Addr().String()+"/", log)
	require.NoError(t, err)
	defer client.Close()
	waitForClients(t, registry, 1)

	msgs := scenario()
	for _, m := range msgs {
		require.NoError(t, q.Put(ctx, m))
	}
	q.Close()

	for _, m := range msgs {
		assert.Equal(t, m, readPayload(t, client))
	}
	expectEOF(t, client)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	assert.NoError(t, srv.Shutdown(shutdownCtx))
}

func TestRun_ReturnsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	log := logger.NewDiscard()
	srv := NewWSServer(ln.Addr().String(), "/", queue.NewShared(queue.New(1)), NewRegistry(log), log, 0)
	assert.Error(t, Run(context.Background(), srv))
}
