package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Check(t *testing.T) {
	checker := NewHealthChecker(map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	})

	status := checker.Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"])
	assert.Equal(t, "not configured", status.Checks["redis"])
}

func TestHealthChecker_Unhealthy(t *testing.T) {
	checker := NewHealthChecker(map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	rec := httptest.NewRecorder()
	checker.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks["database"], "connection refused")
}

func TestMetricsMux_Ready(t *testing.T) {
	readiness := &Readiness{}
	mux := NewMetricsMux(nil, readiness)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	readiness.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPMetrics_PassesThroughStatus(t *testing.T) {
	h := HTTPMetrics(func(*http.Request) string { return "/test" })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecordSettlementBatch_EmptyTierIsUnknown(t *testing.T) {
	before := testutil.ToFloat64(settlementBatchesTotal.WithLabelValues(UnknownTier, "failed"))

	RecordSettlementBatch("", "failed", 0)

	assert.Equal(t, before+1, testutil.ToFloat64(settlementBatchesTotal.WithLabelValues(UnknownTier, "failed")))
	assert.Zero(t, testutil.ToFloat64(settlementBatchesTotal.WithLabelValues("", "failed")))
}
