// Package stream turns a frame source and an inference bridge into an ordered
// sequence of per-frame results and forwards them to the distribution queue.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/service/inference"
	"posestream/internal/service/source"
	"posestream/internal/service/stats"
)

// ErrSourceLost ends a live stream whose device stopped delivering frames.
var ErrSourceLost = errors.New("live source lost")

// Options tune a Stream. The zero value is usable.
type Options struct {
	// Preprocess runs on every frame after it is stamped.
	Preprocess source.Preprocessor
	// InferenceTimeout bounds the wait for one frame; zero waits forever.
	// A timed out frame is skipped.
	InferenceTimeout time.Duration
	Stats            *stats.Collector
}

// Stream yields one FrameResult per successfully inferred frame, in
// acquisition order. It is not restartable: once Next has returned an error
// every later call returns the same error.
type Stream struct {
	src    source.FrameSource
	bridge *inference.Bridge
	policy source.TimestampPolicy
	opts   Options
	logger *logger.Logger

	lastEngineTs int64
	stamped      bool

	err       error
	closeOnce sync.Once
}

// New builds a stream over src. The stream owns src and bridge and releases
// them on Close.
func New(src source.FrameSource, bridge *inference.Bridge, logger *logger.Logger, opts Options) *Stream {
	return &Stream{
		src:    src,
		bridge: bridge,
		policy: src.TimestampPolicy(),
		opts:   opts,
		logger: logger,
	}
}

// Next returns the next result, io.EOF when the source is exhausted, or the
// fatal error that ended the stream.
func (s *Stream) Next(ctx context.Context) (*model.FrameResult, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.end(err)
		}

		frame, err := s.src.Next()
		if err != nil {
			return s.end(s.readError(err))
		}

		// stamp at acquisition so a dropped frame still advances replay time
		ts := s.policy.Stamp(frame)

		if s.opts.Preprocess != nil {
			processed, err := s.opts.Preprocess(frame)
			if err != nil {
				s.logger.Warning("Preprocessing frame %d failed: %v", frame.Seq, err)
				s.opts.Stats.PreprocessFailed()
				continue
			}
			frame = processed
		}

		engineTs := s.engineTimestamp(ts)

		start := time.Now()
		detection, err := s.infer(ctx, frame, engineTs)
		if err != nil {
			if ctx.Err() != nil {
				return s.end(ctx.Err())
			}
			if inference.IsFatal(err) {
				s.logger.Error("Inference engine failed: %v", err)
				return s.end(err)
			}
			s.logger.Warning("Skipping frame %d: %v", frame.Seq, err)
			s.opts.Stats.InferenceFailed()
			continue
		}
		s.opts.Stats.FrameProcessed(time.Since(start))

		return &model.FrameResult{
			Timestamp: ts,
			Poses:     detection.Poses,
			Source:    frame,
			Valid:     true,
		}, nil
	}
}

// Close releases the source and the engine.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = errors.Join(s.src.Close(), s.bridge.Close())
	})
	return err
}

func (s *Stream) infer(ctx context.Context, frame *model.Frame, tsMs int64) (model.DetectionResult, error) {
	if s.opts.InferenceTimeout <= 0 {
		return s.bridge.SubmitAndAwait(ctx, frame, tsMs)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.InferenceTimeout)
	defer cancel()
	return s.bridge.SubmitAndAwait(callCtx, frame, tsMs)
}

// readError maps a source failure onto the end of the stream. Files end
// normally whatever went wrong; a live device is gone.
func (s *Stream) readError(err error) error {
	if errors.Is(err, io.EOF) {
		s.logger.Info("Frame source exhausted")
		return io.EOF
	}
	if s.src.Kind() == source.KindFile {
		s.logger.Warning("Video read failed, ending replay: %v", err)
		return io.EOF
	}
	s.logger.Error("Live source failed: %v", err)
	return fmt.Errorf("%w: %v", ErrSourceLost, err)
}

// engineTimestamp rounds ts to whole ms and keeps the engine's timestamps
// strictly increasing.
func (s *Stream) engineTimestamp(ts float64) int64 {
	ms := int64(math.Round(ts))
	if s.stamped && ms <= s.lastEngineTs {
		ms = s.lastEngineTs + 1
	}
	s.lastEngineTs = ms
	s.stamped = true
	return ms
}

func (s *Stream) end(err error) (*model.FrameResult, error) {
	s.err = err
	return nil, err
}
