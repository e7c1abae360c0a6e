package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"posestream/internal/logger"
	"posestream/internal/protocol"
)

// TCPStream reads length-prefixed payloads from a TCP server.
type TCPStream struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *logger.Logger
}

// DialTCP connects to a TCP detection server at addr.
func DialTCP(ctx context.Context, addr string, logger *logger.Logger) (*TCPStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewTCPStream(conn, logger), nil
}

// NewTCPStream wraps an established connection.
func NewTCPStream(conn net.Conn, logger *logger.Logger) *TCPStream {
	return &TCPStream{conn: conn, reader: bufio.NewReader(conn), logger: logger}
}

// NextPayload returns the next non-empty payload. Zero-length frames are
// skipped. A frame above protocol.MaxFrameSize leaves the stream out of sync
// and ends it with protocol.ErrFrameTooLarge.
func (s *TCPStream) NextPayload(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		payload, err := protocol.ReadFrame(s.reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Warning("Connection closed mid-message")
				return nil, io.EOF
			}
			return nil, err
		}
		if len(payload) == 0 {
			s.logger.Warning("Unexpected empty message, skipping")
			continue
		}
		return payload, nil
	}
}

func (s *TCPStream) Close() error {
	return s.conn.Close()
}
