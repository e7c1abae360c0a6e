package stream

import (
	"context"
	"errors"
	"io"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/protocol"
	"posestream/internal/service/queue"
	"posestream/internal/service/stats"
)

// Results is anything that yields frame results until io.EOF.
type Results interface {
	Next(ctx context.Context) (*model.FrameResult, error)
}

// Sink observes results next to the queue. Offer must not block and must not
// modify the result.
type Sink interface {
	Offer(result *model.FrameResult)
}

// Forward encodes every result from results and puts it on q, blocking
// while q is full. Sinks see each result before it is encoded. When results
// ends, for whatever reason, q is closed so consumers drain and stop.
// Forward returns nil on a normal end of stream.
func Forward(ctx context.Context, results Results, q *queue.Queue, enc *protocol.Encoder,
	st *stats.Collector, logger *logger.Logger, sinks ...Sink) error {
	defer q.Close()

	for {
		result, err := results.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("Result stream ended")
			return nil
		}
		if err != nil {
			return err
		}

		for _, sink := range sinks {
			sink.Offer(result)
		}

		switch {
		case len(result.Poses) == 0:
			st.EmptyResult()
		case len(result.Poses) > 1:
			st.PoseTruncated()
		}

		msg := enc.Encode(result)
		if msg == nil {
			continue
		}
		if err := q.Put(ctx, msg); err != nil {
			if errors.Is(err, queue.ErrShutdown) {
				return nil
			}
			return err
		}
		st.MessageEnqueued()
	}
}
