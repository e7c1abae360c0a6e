package inference

import (
	"context"
	"sync"

	"posestream/internal/logger"
	"posestream/internal/model"
)

// Bridge turns an Engine into a blocking call with at most one frame in
// flight. The pending slot belongs to the bridge; only the engine callback
// fills it and only the waiting SubmitAndAwait call reads it.
type Bridge struct {
	engine Engine
	logger *logger.Logger

	mu      sync.Mutex
	pending *pendingCall
}

type pendingCall struct {
	timestampMs int64
	done        chan Result
}

// NewBridge wraps engine and registers the bridge as its result handler.
func NewBridge(engine Engine, logger *logger.Logger) *Bridge {
	b := &Bridge{engine: engine, logger: logger}
	engine.OnResult(b.complete)
	return b
}

// SubmitAndAwait hands frame to the engine and waits for its result.
// A concurrent call while one is outstanding fails with ErrBusy. If ctx ends
// first the frame is abandoned and its late result is discarded.
func (b *Bridge) SubmitAndAwait(ctx context.Context, frame *model.Frame, timestampMs int64) (model.DetectionResult, error) {
	call := &pendingCall{timestampMs: timestampMs, done: make(chan Result, 1)}

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return model.DetectionResult{}, ErrBusy
	}
	b.pending = call
	b.mu.Unlock()

	if err := b.engine.DetectAsync(frame, timestampMs); err != nil {
		b.clear(call)
		if IsFatal(err) {
			return model.DetectionResult{}, err
		}
		return model.DetectionResult{}, &InferenceError{TimestampMs: timestampMs, Err: err}
	}

	select {
	case res := <-call.done:
		if res.Err != nil {
			if IsFatal(res.Err) {
				return model.DetectionResult{}, res.Err
			}
			return model.DetectionResult{}, &InferenceError{TimestampMs: timestampMs, Err: res.Err}
		}
		return res.Detection, nil
	case <-ctx.Done():
		b.clear(call)
		return model.DetectionResult{}, ctx.Err()
	}
}

// Close releases the underlying engine.
func (b *Bridge) Close() error {
	return b.engine.Close()
}

// complete is the engine callback.
func (b *Bridge) complete(res Result) {
	b.mu.Lock()
	call := b.pending
	// an unusable engine fails whatever is waiting, whatever the timestamp
	if call == nil || (call.timestampMs != res.TimestampMs && !IsFatal(res.Err)) {
		b.mu.Unlock()
		b.logger.Debug("Discarding stale inference result for %dms", res.TimestampMs)
		return
	}
	b.pending = nil
	b.mu.Unlock()

	call.done <- res
}

func (b *Bridge) clear(call *pendingCall) {
	b.mu.Lock()
	if b.pending == call {
		b.pending = nil
	}
	b.mu.Unlock()
}
