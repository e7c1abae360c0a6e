package inference

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"posestream/internal/logger"
	"posestream/internal/model"
)

const (
	defaultStartTimeout = 30 * time.Second
	stopTimeout         = 2 * time.Second
)

// SubprocessConfig describes the worker process hosting the pose model.
type SubprocessConfig struct {
	Command      string
	Args         []string
	Env          []string
	ModelPath    string
	NumPoses     int
	StartTimeout time.Duration
}

// workerRequest is written to the worker's stdin, one msgpack value per frame.
type workerRequest struct {
	TimestampMs int64  `msgpack:"timestamp_ms"`
	Width       int    `msgpack:"width"`
	Height      int    `msgpack:"height"`
	MatType     int    `msgpack:"mat_type"`
	Data        []byte `msgpack:"data"`
}

// workerMessage is read from the worker's stdout. The first message carries
// Ready; every later one answers exactly one request.
type workerMessage struct {
	Ready       bool               `msgpack:"ready,omitempty"`
	TimestampMs int64              `msgpack:"timestamp_ms"`
	Poses       [][]workerLandmark `msgpack:"poses"`
	Error       string             `msgpack:"error,omitempty"`
}

type workerLandmark struct {
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	Z          float64 `msgpack:"z"`
	Visibility float64 `msgpack:"visibility"`
	Presence   float64 `msgpack:"presence"`
}

// SubprocessEngine runs pose detection in a child process. Frames go to the
// child's stdin and results come back on stdout, both msgpack encoded; the
// child's stderr is forwarded to the logger.
type SubprocessEngine struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *logger.Logger

	writeMu sync.Mutex
	enc     *msgpack.Encoder

	handlerMu sync.RWMutex
	handler   func(Result)

	// outstanding counts requests the worker has not answered; abandoned
	// requests stay counted until their late reply arrives
	outstanding atomic.Int64
	lastTs      atomic.Int64
	unusable    atomic.Bool
	closing     atomic.Bool
	exited      chan struct{}
	wg          sync.WaitGroup
}

// StartSubprocess spawns the worker and waits for its ready message. Any
// failure here is a startup error and leaves no process behind.
func StartSubprocess(ctx context.Context, cfg SubprocessConfig, logger *logger.Logger) (*SubprocessEngine, error) {
	if cfg.Command == "" {
		return nil, errors.New("worker command is required")
	}
	args := append([]string(nil), cfg.Args...)
	if cfg.ModelPath != "" {
		args = append(args, "--model", cfg.ModelPath)
	}
	if cfg.NumPoses > 0 {
		args = append(args, "--num-poses", strconv.Itoa(cfg.NumPoses))
	}

	cmd := exec.Command(cfg.Command, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", cfg.Command, err)
	}

	e := &SubprocessEngine{
		cmd:    cmd,
		stdin:  stdin,
		enc:    msgpack.NewEncoder(stdin),
		logger: logger,
		exited: make(chan struct{}),
	}

	ready := make(chan error, 1)
	e.wg.Add(2)
	go e.readResults(bufio.NewReader(stdout), ready)
	go e.logStderr(stderr)
	go e.waitProcess()

	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("worker failed to start: %w", err)
		}
	case <-timer.C:
		e.Close()
		return nil, fmt.Errorf("worker not ready after %s", timeout)
	case <-ctx.Done():
		e.Close()
		return nil, ctx.Err()
	}

	logger.Info("Inference worker started (pid %d)", cmd.Process.Pid)
	return e, nil
}

// OnResult registers the completion callback.
func (e *SubprocessEngine) OnResult(handler func(Result)) {
	e.handlerMu.Lock()
	e.handler = handler
	e.handlerMu.Unlock()
}

// DetectAsync writes the frame to the worker.
func (e *SubprocessEngine) DetectAsync(frame *model.Frame, timestampMs int64) error {
	if e.unusable.Load() {
		return ErrEngineUnusable
	}

	req := workerRequest{
		TimestampMs: timestampMs,
		Width:       frame.Width,
		Height:      frame.Height,
		MatType:     frame.Type,
		Data:        frame.Data,
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.lastTs.Store(timestampMs)
	e.outstanding.Add(1)
	if err := e.enc.Encode(&req); err != nil {
		e.outstanding.Add(-1)
		e.unusable.Store(true)
		return fmt.Errorf("%w: write to worker: %v", ErrEngineUnusable, err)
	}
	return nil
}

// Close stops the worker. Closing stdin asks it to exit; it is killed if it
// has not exited within stopTimeout.
func (e *SubprocessEngine) Close() error {
	if e.closing.Swap(true) {
		<-e.exited
		return nil
	}
	e.unusable.Store(true)
	e.stdin.Close()

	select {
	case <-e.exited:
	case <-time.After(stopTimeout):
		e.logger.Warning("Inference worker did not exit, killing pid %d", e.cmd.Process.Pid)
		e.cmd.Process.Kill()
		<-e.exited
	}
	return nil
}

func (e *SubprocessEngine) deliver(res Result) {
	e.handlerMu.RLock()
	handler := e.handler
	e.handlerMu.RUnlock()
	if handler != nil {
		handler(res)
	}
}

// readResults decodes worker messages until stdout closes.
func (e *SubprocessEngine) readResults(r io.Reader, ready chan<- error) {
	defer e.wg.Done()
	dec := msgpack.NewDecoder(r)
	started := false

	for {
		var msg workerMessage
		if err := dec.Decode(&msg); err != nil {
			e.unusable.Store(true)
			if !started {
				ready <- err
				return
			}
			if !errors.Is(err, io.EOF) {
				e.logger.Error("Failed to decode worker output: %v", err)
			}
			if e.outstanding.Swap(0) > 0 {
				e.deliver(Result{TimestampMs: e.lastTs.Load(), Err: fmt.Errorf("%w: %v", ErrEngineUnusable, err)})
			}
			return
		}

		if !started {
			if !msg.Ready {
				e.unusable.Store(true)
				ready <- errors.New("worker did not send ready message")
				return
			}
			started = true
			ready <- nil
			continue
		}

		e.outstanding.Add(-1)
		res := Result{TimestampMs: msg.TimestampMs}
		if msg.Error != "" {
			res.Err = errors.New(msg.Error)
		} else {
			res.Detection = toDetection(msg.Poses)
		}
		e.deliver(res)
	}
}

func toDetection(poses [][]workerLandmark) model.DetectionResult {
	out := model.DetectionResult{Poses: make([]model.PoseDetection, 0, len(poses))}
	for _, pose := range poses {
		lms := make([]model.Landmark, len(pose))
		for i, lm := range pose {
			lms[i] = model.Landmark{
				X: float32(lm.X), Y: float32(lm.Y), Z: float32(lm.Z),
				Availability: model.Availability{
					Visibility: float32(lm.Visibility),
					Presence:   float32(lm.Presence),
				},
			}
		}
		out.Poses = append(out.Poses, model.PoseDetection{Landmarks: lms})
	}
	return out
}

// logStderr maps worker log prefixes onto logger levels.
func (e *SubprocessEngine) logStderr(r io.Reader) {
	defer e.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			e.logger.Error("worker: %s", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			e.logger.Warning("worker: %s", line)
		default:
			e.logger.Debug("worker: %s", line)
		}
	}
}

// waitProcess reaps the worker so it never lingers as a zombie. Wait closes
// the pipes, so it only runs once both readers have hit EOF.
func (e *SubprocessEngine) waitProcess() {
	e.wg.Wait()
	err := e.cmd.Wait()
	if err != nil && !e.closing.Load() {
		e.logger.Error("Inference worker exited unexpectedly: %v", err)
	}
	e.unusable.Store(true)
	close(e.exited)
}
