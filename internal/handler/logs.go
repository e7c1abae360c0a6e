package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"posestream/internal/logger"
)

// ShowLogsHandler serves one of the logger's files as text/plain.
func ShowLogsHandler(log *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLogFile(w, r, log.Dir(), filename)
	}
}

func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	path := filepath.Join(logDir, filename)
	if _, err := os.Stat(path); logDir == "" || errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "Log file not found: "+filename, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// ClearLogsHandler truncates one of the logger's files.
func ClearLogsHandler(log *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := log.CleanLogs(filename); err != nil {
			http.Error(w, "Unable to clear "+filename, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
