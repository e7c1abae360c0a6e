// Package service runs the streaming pipeline: the producer that turns
// frames into queued messages and the transports that drain the queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"posestream/internal/logger"
	"posestream/internal/protocol"
	"posestream/internal/service/inference"
	"posestream/internal/service/queue"
	"posestream/internal/service/stats"
	"posestream/internal/service/stream"
	"posestream/internal/service/transport"
)

const defaultDrainTimeout = 5 * time.Second

// ResultStream is the producer side of the pipeline.
type ResultStream interface {
	stream.Results
	Close() error
}

// Runner is implemented by sinks that need their own goroutine.
type Runner interface {
	Run(ctx context.Context)
}

// Options wire a Manager. Servers must already be listening.
type Options struct {
	Stream      ResultStream
	Queue       *queue.Queue
	Broadcaster *queue.Broadcaster // nil when every server shares Queue
	Servers     []transport.Server
	Sinks       []stream.Sink
	Stats       *stats.Collector
	Ledger      *Ledger

	StatsInterval time.Duration
	// DrainTimeout bounds how long connections may take to send what is
	// still queued once the producer has stopped.
	DrainTimeout time.Duration
}

type Manager struct {
	opts    Options
	encoder *protocol.Encoder
	logger  *logger.Logger
}

func NewManager(opts Options, logger *logger.Logger) *Manager {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	return &Manager{
		opts:    opts,
		encoder: protocol.NewEncoder(),
		logger:  logger,
	}
}

// Run streams until the source ends, the engine fails or ctx is cancelled.
// Queued messages are then drained to connected clients before the servers
// close. A cancelled ctx is a normal shutdown and returns nil.
func (m *Manager) Run(ctx context.Context) error {
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()

	var servers sync.WaitGroup
	for _, srv := range m.opts.Servers {
		servers.Add(1)
		go func(srv transport.Server) {
			defer servers.Done()
			if err := srv.Serve(serveCtx); err != nil {
				m.logger.Error("%s server failed: %v", srv.Name(), err)
			}
		}(srv)
	}

	pumpDone := make(chan struct{})
	if m.opts.Broadcaster != nil {
		go func() {
			defer close(pumpDone)
			if err := m.opts.Broadcaster.Run(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("Broadcast pump stopped: %v", err)
			}
		}()
	} else {
		close(pumpDone)
	}

	sinkCtx, stopSinks := context.WithCancel(ctx)
	var sinks sync.WaitGroup
	for _, sink := range m.opts.Sinks {
		if r, ok := sink.(Runner); ok {
			sinks.Add(1)
			go func() {
				defer sinks.Done()
				r.Run(sinkCtx)
			}()
		}
	}

	if m.opts.StatsInterval > 0 {
		go m.reportStats(sinkCtx)
	}

	m.logger.Info("Streaming started")
	err := stream.Forward(ctx, m.opts.Stream, m.opts.Queue, m.encoder, m.opts.Stats, m.logger, m.opts.Sinks...)
	reason := endReason(err)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("Streaming stopped: %v", err)
	} else {
		m.logger.Info("Streaming stopped: %s", reason)
	}

	if cerr := m.opts.Stream.Close(); cerr != nil {
		m.logger.Warning("Failed to release source or engine: %v", cerr)
	}
	stopSinks()
	sinks.Wait()

	// the queue is closed; let clients receive what is left
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), m.opts.DrainTimeout)
	defer cancelDrain()
	select {
	case <-pumpDone:
	case <-drainCtx.Done():
	}
	for _, srv := range m.opts.Servers {
		if serr := srv.Shutdown(drainCtx); serr != nil {
			m.logger.Warning("%s shutdown: %v", srv.Name(), serr)
		}
	}
	stopServing()
	servers.Wait()
	<-pumpDone

	snap := m.opts.Stats.Snapshot()
	m.logger.Info("%s", summary(snap))
	if m.opts.Ledger != nil {
		m.opts.Ledger.End(snap, reason)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) reportStats(ctx context.Context) {
	ticker := time.NewTicker(m.opts.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.opts.Stats.Snapshot()
			m.logger.Info("Stats: %d frames (%.1f fps), latency mean %.1fms p95 %.1fms, %d skipped, queue %d/%d",
				s.Frames, s.FPS, s.LatencyMeanMs, s.LatencyP95Ms, s.InferenceFailures+s.PreprocessFailures,
				m.opts.Queue.Len(), m.opts.Queue.Cap())
		}
	}
}

func summary(s stats.Snapshot) string {
	return fmt.Sprintf("Processed %d frames, enqueued %d messages, skipped %d (%d inference, %d preprocessing)",
		s.Frames, s.MessagesEnqueued, s.InferenceFailures+s.PreprocessFailures, s.InferenceFailures, s.PreprocessFailures)
}

func endReason(err error) string {
	switch {
	case err == nil:
		return "source exhausted"
	case errors.Is(err, context.Canceled):
		return "shutdown requested"
	case errors.Is(err, stream.ErrSourceLost):
		return "source lost"
	case inference.IsFatal(err):
		return "inference engine failed"
	default:
		return err.Error()
	}
}
