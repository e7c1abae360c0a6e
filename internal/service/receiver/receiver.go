// Package receiver is the client side of the detection stream: it reads
// message payloads from a server and forwards the parsed values.
package receiver

import (
	"context"
	"errors"
	"io"

	"posestream/internal/logger"
)

// PayloadStream yields whole message payloads. NextPayload returns io.EOF
// once the peer has closed the stream.
type PayloadStream interface {
	NextPayload(ctx context.Context) ([]byte, error)
	Close() error
}

// Forward parses every payload from stream and sends the result to out.
// Payloads that fail to parse are logged and skipped. Forward returns nil
// when the stream ends and ctx.Err() when ctx is cancelled; it never closes
// out.
func Forward[T any](ctx context.Context, stream PayloadStream, parse func([]byte) (T, error),
	out chan<- T, logger *logger.Logger) error {
	for {
		payload, err := stream.NextPayload(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Payload stream ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		parsed, err := parse(payload)
		if err != nil {
			logger.Warning("Failed to parse message, skipping (%d bytes): %v", len(payload), err)
			continue
		}

		select {
		case out <- parsed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
