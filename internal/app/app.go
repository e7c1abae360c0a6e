package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"posestream/internal/config"
	"posestream/internal/logger"
	"posestream/internal/repository/sqlite"
	"posestream/internal/route"
	"posestream/internal/service"
	"posestream/internal/service/inference"
	"posestream/internal/service/preview"
	"posestream/internal/service/queue"
	"posestream/internal/service/source"
	"posestream/internal/service/source/capture"
	"posestream/internal/service/stats"
	"posestream/internal/service/stream"
	"posestream/internal/service/transport"
)

type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	ledger  *service.Ledger
	manager *service.Manager
}

// New opens the frame source, starts the inference worker and binds every
// configured transport. Any failure is returned and everything opened so far
// is released.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (a *App, err error) {
	var cleanup []func() error
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	src, err := openSource(cfg, log)
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, src.Close)

	engine, err := inference.StartSubprocess(ctx, inference.SubprocessConfig{
		Command:   cfg.WorkerCommand,
		Args:      workerArgs(cfg),
		ModelPath: cfg.ModelPath,
		NumPoses:  cfg.NumPoses,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start inference engine: %w", err)
	}
	bridge := inference.NewBridge(engine, log)
	cleanup = append(cleanup, bridge.Close)

	collector := stats.New(stats.DefaultWindow)
	opts := stream.Options{
		InferenceTimeout: cfg.InferenceTimeout,
		Stats:            collector,
	}
	if opts.Preprocess, err = preprocessor(cfg, src.Kind()); err != nil {
		return nil, err
	}
	results := stream.New(src, bridge, log, opts)

	q := queue.New(cfg.QueueCapacity)
	var fanout queue.Fanout = queue.NewShared(q)
	var broadcaster *queue.Broadcaster
	if cfg.FanoutMode == config.FanoutBroadcast {
		broadcaster = queue.NewBroadcaster(q, cfg.QueueCapacity)
		fanout = broadcaster
	}

	registry := transport.NewRegistry(log)
	deps := route.Deps{
		Stats:    collector,
		Queue:    q,
		Registry: registry,
		Logger:   log,
	}

	a = &App{config: cfg, logger: log}
	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		cleanup = append(cleanup, db.Close)
		a.db = db
		deps.Sessions = sqlite.NewSessionRepository(db)
		deps.Connections = sqlite.NewConnectionRepository(db)
		a.ledger = service.NewLedger(deps.Sessions, deps.Connections, log)
		registry.OnClose(a.ledger.ConnectionClosed)
	}

	var servers []transport.Server
	if cfg.HasTransport(config.TransportTCP) {
		servers = append(servers, transport.NewTCPServer(cfg.TCPAddr(), fanout, registry, log, cfg.WriteTimeout))
	}
	if cfg.HasTransport(config.TransportWS) {
		ws := transport.NewWSServer(cfg.WSAddr(), cfg.WSPath, fanout, registry, log, cfg.WriteTimeout)
		deps.Stream = ws
		deps.StreamPath = ws.Path()
		ws.SetHandler(route.SetupRoutes(deps))
		servers = append(servers, ws)
	}
	if cfg.HasTransport(config.TransportMQTT) {
		clientID := "posestream-" + uuid.NewString()[:8]
		servers = append(servers, transport.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTTopic, clientID, fanout, registry, log))
	}

	// bind everything before anything serves
	for _, srv := range servers {
		if err := srv.Listen(); err != nil {
			return nil, err
		}
		cleanup = append(cleanup, func() error {
			// never served: nothing to drain
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return srv.Shutdown(ctx)
		})
	}

	var sinks []stream.Sink
	if cfg.ShowPreview {
		sinks = append(sinks, preview.New("posestream", log))
	}

	a.manager = service.NewManager(service.Options{
		Stream:        results,
		Queue:         q,
		Broadcaster:   broadcaster,
		Servers:       servers,
		Sinks:         sinks,
		Stats:         collector,
		Ledger:        a.ledger,
		StatsInterval: cfg.StatsInterval,
	}, log)
	return a, nil
}

// Run streams until the source ends, the engine fails or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.db != nil {
		defer a.db.Close()
	}
	if a.ledger != nil {
		if _, err := a.ledger.Begin(a.sourceName(), strings.Join(a.config.Transports, ",")); err != nil {
			a.logger.Warning("Session ledger disabled: %v", err)
		}
	}

	a.logger.Info("Pose stream server starting: source=%s transports=%s fanout=%s",
		a.sourceName(), strings.Join(a.config.Transports, ","), a.config.FanoutMode)
	return a.manager.Run(ctx)
}

func (a *App) sourceName() string {
	if a.config.Source == config.SourceFile {
		return "file:" + a.config.VideoPath
	}
	return fmt.Sprintf("camera:%d", a.config.CameraID)
}

func openSource(cfg *config.Config, log *logger.Logger) (source.FrameSource, error) {
	switch cfg.Source {
	case config.SourceCamera:
		cam, err := capture.OpenCamera(cfg.CameraID, cfg.FrameWidth, cfg.FrameHeight, log)
		if err != nil {
			return nil, err
		}
		return cam, nil
	case config.SourceFile:
		file, err := capture.OpenFile(cfg.VideoPath, cfg.FileFPS, log)
		if err != nil {
			return nil, err
		}
		return file, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func workerArgs(cfg *config.Config) []string {
	if cfg.WorkerScript == "" {
		return nil
	}
	return []string{cfg.WorkerScript}
}

// preprocessor mirrors live frames when asked and marks the ROI on replayed
// ones.
func preprocessor(cfg *config.Config, kind source.Kind) (source.Preprocessor, error) {
	switch {
	case kind == source.KindLive && cfg.Flip:
		return capture.Mirror(), nil
	case kind == source.KindFile && cfg.ROI != "":
		roi, err := cfg.ROIRect()
		if err != nil {
			return nil, err
		}
		return capture.HighlightROI(roi), nil
	}
	return nil, nil
}
