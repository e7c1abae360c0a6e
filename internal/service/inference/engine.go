// Package inference adapts callback-driven pose engines to a sequential
// submit-and-wait call.
package inference

import (
	"errors"
	"fmt"

	"posestream/internal/model"
)

var (
	// ErrBusy is returned when a frame is submitted while another is in flight.
	ErrBusy = errors.New("inference already in flight")
	// ErrEngineUnusable means the engine cannot process any further frames.
	ErrEngineUnusable = errors.New("inference engine unusable")
)

// Result is delivered by an engine once per accepted DetectAsync call.
type Result struct {
	TimestampMs int64
	Detection   model.DetectionResult
	Err         error
}

// Engine is an asynchronous pose detector. DetectAsync returns once the frame
// has been handed off; the handler registered with OnResult is called exactly
// once per accepted frame, possibly from another goroutine.
type Engine interface {
	DetectAsync(frame *model.Frame, timestampMs int64) error
	OnResult(handler func(Result))
	Close() error
}

// InferenceError reports that the engine failed on one frame.
type InferenceError struct {
	TimestampMs int64
	Err         error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %dms: %v", e.TimestampMs, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsFatal reports whether err means the engine cannot continue.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEngineUnusable)
}
