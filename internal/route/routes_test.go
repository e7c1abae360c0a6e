package route

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posestream/internal/handler"
	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/repository/sqlite"
	"posestream/internal/service/queue"
	"posestream/internal/service/stats"
	"posestream/internal/service/transport"
)

type testEnv struct {
	handler  http.Handler
	logger   *logger.Logger
	stats    *stats.Collector
	registry *transport.Registry
	db       *sqlite.DB
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	log, err := logger.New(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	db, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		logger:   log,
		stats:    stats.New(16),
		registry: transport.NewRegistry(log),
		db:       db,
	}
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	env.handler = SetupRoutes(Deps{
		Stream:      stream,
		StreamPath:  "/",
		Stats:       env.stats,
		Queue:       queue.New(4),
		Registry:    env.registry,
		Sessions:    sqlite.NewSessionRepository(db),
		Connections: sqlite.NewConnectionRepository(db),
		Logger:      log,
	})
	return env
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatsEndpoint(t *testing.T) {
	env := setup(t)
	env.stats.FrameProcessed(20 * time.Millisecond)
	env.stats.MessageEnqueued()
	env.registry.Add("c1", "tcp", "127.0.0.1:1")

	rec := get(t, env.handler, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body handler.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Frames)
	assert.Equal(t, int64(1), body.MessagesEnqueued)
	assert.Equal(t, 4, body.QueueCapacity)
	assert.Equal(t, 1, body.Clients)
}

func TestConnectionsEndpoint(t *testing.T) {
	env := setup(t)
	env.registry.Add("c1", "ws", "127.0.0.1:2")

	rec := get(t, env.handler, http.MethodGet, "/api/connections")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "ws", body[0]["transport"])
	assert.Equal(t, "connected", body[0]["state"])
}

func TestSessionsEndpoint(t *testing.T) {
	env := setup(t)
	sessions := sqlite.NewSessionRepository(env.db)
	require.NoError(t, sessions.Start(&model.Session{ID: "s1", Source: "camera", Transports: "tcp", StartedAt: time.Now()}))

	rec := get(t, env.handler, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)

	rec = get(t, env.handler, http.MethodGet, "/api/sessions?id=s1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, env.handler, http.MethodGet, "/api/sessions?id=nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, env.handler, http.MethodGet, "/api/sessions?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, env.handler, http.MethodGet, "/api/sessions?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, sessions.Start(&model.Session{ID: "s2", Source: "file:a.mp4", Transports: "ws", StartedAt: time.Now().Add(time.Minute)}))
	rec = get(t, env.handler, http.MethodGet, "/api/sessions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "s2", list[0].ID)
}

func TestLogEndpoints(t *testing.T) {
	env := setup(t)
	env.logger.Info("hello from the test")

	rec := get(t, env.handler, http.MethodGet, "/logs/info")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello from the test")

	rec = get(t, env.handler, http.MethodGet, "/logs/info/clear")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(t, env.handler, http.MethodPost, "/logs/warning/clear")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	info, err := os.Stat(filepath.Join(env.logger.Dir(), logger.WarningFile))
	require.NoError(t, err)
	// the clear itself is logged to info, not warning
	assert.Zero(t, info.Size())
}

func TestStreamPathIsCatchAll(t *testing.T) {
	env := setup(t)
	assert.Equal(t, http.StatusTeapot, get(t, env.handler, http.MethodGet, "/").Code)
}
