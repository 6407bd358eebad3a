package metric

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/health"
)

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordTerm("MI", "created")
	server := NewServer(0, "", registry)
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cvsync_terms_processed_total")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_HealthMonitor(t *testing.T) {
	monitor := health.NewMonitor()
	server := NewServer(9100, "/metrics", NewMetricsRegistry())
	server.SetHealthMonitor(monitor, "cvupdate")

	get := func() (*httptest.ResponseRecorder, health.Status) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var status health.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		return rec, status
	}

	monitor.Update("store", health.NewDegraded("", "slow"))
	rec, status := get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StateDegraded, status.Status)
	assert.Equal(t, "cvupdate", status.Component)

	monitor.Update("nats", health.NewUnhealthy("", "down"))
	rec, status = get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Len(t, status.SubStatuses, 2)
}
