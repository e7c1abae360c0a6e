package route

import (
	"net/http"

	"posestream/internal/handler"
	"posestream/internal/logger"
	"posestream/internal/middleware"
	"posestream/internal/repository"
	"posestream/internal/service/queue"
	"posestream/internal/service/stats"
	"posestream/internal/service/transport"
)

// Deps are the components the HTTP routes read from. Sessions and
// Connections may be nil when the ledger is disabled.
type Deps struct {
	Stream      http.Handler
	StreamPath  string
	Stats       *stats.Collector
	Queue       *queue.Queue
	Registry    *transport.Registry
	Sessions    repository.SessionRepository
	Connections repository.ConnectionRepository
	Logger      *logger.Logger
}

// SetupRoutes registers the stream endpoint, the API endpoints and the log
// endpoints on one mux.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	log := d.Logger

	// API endpoints
	mux.HandleFunc("/api/stats", handler.StatsHandler(d.Stats, d.Queue, d.Registry, log))
	mux.HandleFunc("/api/connections", handler.ConnectionsHandler(d.Registry, log))
	if d.Sessions != nil && d.Connections != nil {
		mux.HandleFunc("/api/sessions", handler.SessionsHandler(d.Sessions, d.Connections, log))
	}

	// Log endpoints
	logFiles := map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	}
	for name, file := range logFiles {
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+name+"/clear", middleware.PostOnly(handler.ClearLogsHandler(log, file)))
	}

	// with the default "/" path the stream is the catch-all; longer patterns above still win
	mux.Handle(d.StreamPath, d.Stream)

	return middleware.RequestLogger(log, mux)
}
