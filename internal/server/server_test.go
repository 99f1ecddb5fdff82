package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/metrics"
	"github.com/LouYuanbo1/catalogsync/internal/server"
	"github.com/LouYuanbo1/catalogsync/internal/service/crawler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTrigger struct {
	running atomic.Bool
}

func (m *mockTrigger) Start() crawler.StartResult {
	return crawler.StartResult{Accepted: m.running.CompareAndSwap(false, true)}
}

func (m *mockTrigger) Status() crawler.RunSnapshot {
	return crawler.RunSnapshot{
		Running:  m.running.Load(),
		Phase:    crawler.PhaseCollectingProducts,
		Products: crawler.ScopeCounts{Processed: 3, Succeeded: 2, Failed: 1},
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *mockTrigger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	trigger := &mockTrigger{}
	return server.NewRouter(trigger, metrics.New().Registry, logger.NewNop()), trigger
}

func TestStartCrawl(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crawl", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"accepted":true}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crawl", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":false`)
}

func TestCrawlStatus(t *testing.T) {
	router, trigger := setupTestRouter(t)
	trigger.running.Store(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crawl/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap crawler.RunSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, crawler.PhaseCollectingProducts, snap.Phase)
	assert.Equal(t, 1, snap.Products.Failed)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "catalogsync_run_duration_seconds"))
}
