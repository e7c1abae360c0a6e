package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"posestream/internal/logger"
	"posestream/internal/service/queue"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// WSServer sends each message as one binary WebSocket frame. The HTTP
// listener it owns can carry other routes next to the stream endpoint.
type WSServer struct {
	addr         string
	path         string
	fanout       queue.Fanout
	registry     *Registry
	logger       *logger.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	handler http.Handler
	ln      net.Listener
	srv     *http.Server
	conns   *tracker
}

func NewWSServer(addr, path string, fanout queue.Fanout, registry *Registry, logger *logger.Logger, writeTimeout time.Duration) *WSServer {
	s := &WSServer{
		addr:         addr,
		path:         path,
		fanout:       fanout,
		registry:     registry,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: newTracker(),
	}
	mux := http.NewServeMux()
	mux.Handle(path, s)
	s.handler = mux
	return s
}

func (s *WSServer) Name() string { return "ws" }

// Path returns the stream endpoint path.
func (s *WSServer) Path() string { return s.path }

// SetHandler replaces the HTTP handler. It must route Path() to the server
// itself. Call before Serve.
func (s *WSServer) SetHandler(h http.Handler) {
	s.handler = h
}

func (s *WSServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind websocket %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("WebSocket server listening on ws://%s%s", ln.Addr(), s.path)
	return nil
}

// Addr returns the bound address; nil before Listen.
func (s *WSServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *WSServer) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("websocket server is not listening")
	}

	stop := context.AfterFunc(ctx, func() {
		s.srv.Close()
		s.conns.dropConn()
	})
	defer stop()

	err := s.srv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *WSServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	// hijacked stream connections are not tracked by http.Server
	err := s.srv.Shutdown(ctx)
	s.ln.Close()
	return errors.Join(err, s.conns.close(ctx))
}

// ServeHTTP upgrades the request and streams messages until the queue shuts
// down or the client goes away.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.conns.add() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warning("WebSocket upgrade error: %v", err)
		return
	}
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

	go s.readPump(conn, cancel)
	go s.pingLoop(ctx, conn)

	err = drain(ctx, id, q, s.registry, func(msg []byte) error {
		if s.writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		return conn.WriteMessage(websocket.BinaryMessage, msg)
	})
	if errors.Is(err, queue.ErrShutdown) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	s.logger.Debug("WebSocket client %s send loop ended: %s", remote, endReason(err))
}

// readPump handles control frames and notices when the client goes away.
func (s *WSServer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxInboundSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (s *WSServer) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
