package handler

import (
	"encoding/json"
	"net/http"

	"posestream/internal/logger"
	"posestream/internal/service/queue"
	"posestream/internal/service/stats"
	"posestream/internal/service/transport"
)

// StatusResponse is the body of /api/stats.
type StatusResponse struct {
	stats.Snapshot
	QueueLength   int `json:"queue_length"`
	QueueCapacity int `json:"queue_capacity"`
	Clients       int `json:"clients"`
}

// StatsHandler reports pipeline counters, queue depth and client count.
func StatsHandler(collector *stats.Collector, q *queue.Queue, registry *transport.Registry, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Snapshot:      collector.Snapshot(),
			QueueLength:   q.Len(),
			QueueCapacity: q.Cap(),
			Clients:       registry.Count(),
		}
		writeJSON(w, resp, log)
	}
}

// ConnectionsHandler lists the live client connections.
func ConnectionsHandler(registry *transport.Registry, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, registry.List(), log)
	}
}

func writeJSON(w http.ResponseWriter, data any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}
