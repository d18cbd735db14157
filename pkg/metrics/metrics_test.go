package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	m := New()

	m.ObserveFetch(9, true, 3, 200*time.Millisecond)
	m.ObserveFetch(9, false, 0, time.Second)
	m.ObserveFetch(9, true, 2, 100*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("9", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("9", "failure")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LinksDiscovered.WithLabelValues("9")))
}

func TestInFlightAndBreaks(t *testing.T) {
	m := New()

	m.FetchStarted()
	m.FetchStarted()
	m.FetchFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	m.IncCircuitBreaks(10)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreaks.WithLabelValues("10")))

	m.IncCheckpointWrites("interim", nil)
	m.IncCheckpointWrites("final", errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("interim", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("final", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFetch(9, true, 1, time.Second)
	m.FetchStarted()
	m.FetchFinished()
	m.IncCircuitBreaks(9)
	m.IncCheckpointWrites("final", nil)
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFetch(11, true, 1, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `archivescraper_pages_fetched_total{dataset="11",status="success"} 1`))
}
