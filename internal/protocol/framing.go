package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
)

const (
	// HeaderSize is the length prefix size on stream transports.
	HeaderSize = 4
	// MaxFrameSize bounds what a reader accepts in one frame.
	MaxFrameSize = 64 * 1024
)

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload as uint32 little-endian length followed by the
// payload bytes. Header and payload go out in one vectored write when w is a
// net.Conn.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	bufs := net.Buffers{header[:], payload}
	_, err := bufs.WriteTo(w)
	return err
}

// ReadFrame reads one length-prefixed frame. A zero-length frame returns an
// empty, non-nil payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
