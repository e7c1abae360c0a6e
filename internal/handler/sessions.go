package handler

import (
	"net/http"
	"strconv"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/repository"
)

type sessionDetail struct {
	model.Session
	Connections []model.Connection `json:"connections"`
}

// SessionsHandler lists recorded sessions. With ?id= it returns that
// session and its connections; ?limit= caps the list (default 20) and must
// be positive.
func SessionsHandler(sessions repository.SessionRepository, conns repository.ConnectionRepository, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("id"); id != "" {
			s, err := sessions.GetByID(id)
			if err != nil {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
			list, err := conns.ListBySession(id)
			if err != nil {
				log.Error("Failed to list connections of %s: %v", id, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, sessionDetail{Session: *s, Connections: list}, log)
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		list, err := sessions.List(limit)
		if err != nil {
			log.Error("Failed to list sessions: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []model.Session{}
		}
		writeJSON(w, list, log)
	}
}
