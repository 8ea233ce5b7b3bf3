package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/internal/common/config"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/db"
	"github.com/agentdeck/agentdeck/internal/events/bus"
	"github.com/agentdeck/agentdeck/internal/gateway"
	"github.com/agentdeck/agentdeck/internal/permission"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/internal/session/store"
	"github.com/agentdeck/agentdeck/internal/supervisor"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.Default()

	eventBus := bus.NewMemoryEventBus(log)
	t.Cleanup(eventBus.Close)

	pool, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	repo, err := store.NewRepository(pool)
	require.NoError(t, err)

	sup, err := supervisor.New(config.AgentConfig{}, eventBus, log)
	require.NoError(t, err)

	broker := permission.New(eventBus, log, permission.Options{})
	t.Cleanup(broker.Stop)

	return buildRouter(routerDeps{
		log:         log,
		sessions:    service.NewService(repo, eventBus, log),
		supervisor:  sup,
		broker:      broker,
		transcripts: transcript.NewStoreAt(t.TempDir()),
		hub:         gateway.NewHub(log),
	})
}

func TestHealthServedOnRootAndAPI(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"status":"ok"`, path)
	}
}
