// Package source defines where frames come from and how they are stamped.
package source

import (
	"errors"

	"posestream/internal/model"
)

// ErrReadFailed is returned by Next when the device or file yields no frame.
var ErrReadFailed = errors.New("failed to read frame")

// Kind tells live devices apart from replayed files. A read failure ends a
// file replay normally but is fatal for a live source.
type Kind int

const (
	KindLive Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindLive:
		return "live"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// FrameSource produces frames in acquisition order.
type FrameSource interface {
	// Next returns the next frame, io.EOF when a file is exhausted, or an
	// error wrapping ErrReadFailed.
	Next() (*model.Frame, error)
	Kind() Kind
	TimestampPolicy() TimestampPolicy
	Close() error
}

// Preprocessor transforms a frame before it is stamped and submitted for
// inference. It returns a new frame and leaves its input untouched.
type Preprocessor func(frame *model.Frame) (*model.Frame, error)
