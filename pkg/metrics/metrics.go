package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"archivescraper/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a scraper run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	LinksDiscovered  *prometheus.CounterVec
	InFlight         prometheus.Gauge
	CircuitBreaks    *prometheus.CounterVec
	CheckpointWrites *prometheus.CounterVec
}

// New registers the scraper metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivescraper",
			Name:      "pages_fetched_total",
			Help:      "Listing pages fetched, by dataset and status.",
		}, []string{"dataset", "status"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archivescraper",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single listing page fetch.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
		}, []string{"dataset"}),
		LinksDiscovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivescraper",
			Name:      "links_discovered_total",
			Help:      "Media links extracted from listing pages.",
		}, []string{"dataset"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "archivescraper",
			Name:      "fetches_in_flight",
			Help:      "Page fetches currently running.",
		}),
		CircuitBreaks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivescraper",
			Name:      "circuit_breaks_total",
			Help:      "Runs stopped early by the consecutive failure breaker.",
		}, []string{"dataset"}),
		CheckpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivescraper",
			Name:      "checkpoint_writes_total",
			Help:      "Progress writes, by kind (interim, final) and status.",
		}, []string{"kind", "status"}),
	}
}

// Registry exposes the underlying registry for handlers and tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one fetch result
func (m *Metrics) ObserveFetch(datasetID int, success bool, links int, d time.Duration) {
	if m == nil {
		return
	}
	ds := strconv.Itoa(datasetID)
	status := "success"
	if !success {
		status = "failure"
	}
	m.PagesFetched.WithLabelValues(ds, status).Inc()
	m.FetchDuration.WithLabelValues(ds).Observe(d.Seconds())
	if links > 0 {
		m.LinksDiscovered.WithLabelValues(ds).Add(float64(links))
	}
}

func (m *Metrics) FetchStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) FetchFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

func (m *Metrics) IncCircuitBreaks(datasetID int) {
	if m != nil {
		m.CircuitBreaks.WithLabelValues(strconv.Itoa(datasetID)).Inc()
	}
}

// IncCheckpointWrites counts a progress write; kind is "interim" or "final"
func (m *Metrics) IncCheckpointWrites(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CheckpointWrites.WithLabelValues(kind, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.InfoWithFields("Metrics endpoint listening", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
