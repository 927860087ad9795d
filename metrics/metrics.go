// Package metrics defines the service's Prometheus collectors and the
// standalone metrics listener. Collectors live in their own package so the
// rotation, fleetsync and HTTP packages can record to them without import
// cycles.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rotations counts rotation attempts by outcome (rotated / too_soon).
	Rotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_rotations_total",
		Help: "Rotation attempts by region and outcome",
	}, []string{"region", "outcome"})

	// RotationErrors counts failed rotation attempts by failure stage.
	RotationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_rotation_errors_total",
		Help: "Failed rotation attempts by region and reason",
	}, []string{"region", "reason"})

	// SaveConflicts counts cache saves lost to a concurrent writer.
	SaveConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_cache_save_conflicts_total",
		Help: "Cache document saves aborted by a version conflict",
	}, []string{"region"})

	// FleetPush counts per-instance push results.
	FleetPush = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_fleet_push_total",
		Help: "Per-instance key push results",
	}, []string{"result"})

	// HTTPDuration observes API handler latency.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "API request latency by route and status code",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"route", "code"})
)

// Register attaches the service collectors to the given registerer (the
// default registerer if nil). Double registration is tolerated so tests
// can build multiple servers.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{Rotations, RotationErrors, SaveConflicts, FleetPush, HTTPDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// MetricsServer serves the Prometheus scrape endpoint on its own listener,
// away from the API port.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given listen address. The service
// collectors plus Go runtime and process collectors are registered on a
// dedicated registry.
func New(listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := Register(registry); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:        listenAddr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
