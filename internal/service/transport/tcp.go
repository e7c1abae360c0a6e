package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"posestream/internal/logger"
	"posestream/internal/protocol"
	"posestream/internal/service/queue"
)

// TCPServer sends each message as a uint32 little-endian length followed by
// the message bytes.
type TCPServer struct {
	addr         string
	fanout       queue.Fanout
	registry     *Registry
	logger       *logger.Logger
	writeTimeout time.Duration

	ln       net.Listener
	accepted chan struct{}
	conns    *tracker
}

func NewTCPServer(addr string, fanout queue.Fanout, registry *Registry, logger *logger.Logger, writeTimeout time.Duration) *TCPServer {
	return &TCPServer{
		addr:         addr,
		fanout:       fanout,
		registry:     registry,
		logger:       logger,
		writeTimeout: writeTimeout,
		accepted:     make(chan struct{}),
		conns:        newTracker(),
	}
}

func (s *TCPServer) Name() string { return "tcp" }

func (s *TCPServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind tcp %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("TCP server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address; nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *TCPServer) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("tcp server is not listening")
	}
	defer close(s.accepted)

	stop := context.AfterFunc(ctx, func() {
		s.ln.Close()
		s.conns.dropConn()
	})
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("TCP accept failed: %v", err)
			return err
		}
		if !s.conns.add() {
			conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) Shutdown(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	s.ln.Close()
	select {
	case <-s.accepted:
	case <-ctx.Done():
	}
	return s.conns.close(ctx)
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer s.conns.done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	id, q := s.fanout.Subscribe()
	defer s.fanout.Unsubscribe(id)
	s.registry.Add(id, s.Name(), remote)
	defer s.registry.Remove(id)

	ctx, cancel := context.WithCancel(s.conns.connCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// clients never send; a read returning means the peer went away
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	err := drain(ctx, id, q, s.registry, func(msg []byte) error {
		if s.writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		return protocol.WriteFrame(conn, msg)
	})
	s.logger.Debug("TCP client %s send loop ended: %s", remote, endReason(err))
}
