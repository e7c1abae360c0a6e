package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"posestream/internal/logger"
)

// WSStream reads one payload per binary WebSocket message.
type WSStream struct {
	conn   *websocket.Conn
	logger *logger.Logger
}

// DialWebSocket connects to a WebSocket detection server, e.g. ws://host:9001/.
func DialWebSocket(ctx context.Context, url string, logger *logger.Logger) (*WSStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	conn.SetPongHandler(func(string) error {
		logger.Debug("Received pong")
		return nil
	})
	return &WSStream{conn: conn, logger: logger}, nil
}

// NextPayload returns the next binary message. Text messages are skipped;
// pings are answered by the connection's default ping handler while reading.
func (s *WSStream) NextPayload(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("WebSocket stream closed")
				return nil, io.EOF
			}
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close sends a close frame and closes the connection.
func (s *WSStream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
