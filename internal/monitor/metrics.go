package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gramfuzz/internal/engine"
)

// Metrics exports campaign counters per client.
type Metrics struct {
	registry   *prometheus.Registry
	executions *prometheus.GaugeVec
	corpus     *prometheus.GaugeVec
	objectives *prometheus.GaugeVec
	events     *prometheus.CounterVec
}

// NewMetrics registers the campaign metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		executions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gramfuzz",
			Name:      "executions",
			Help:      "Target executions reported by a client",
		}, []string{"client"}),
		corpus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gramfuzz",
			Name:      "corpus_size",
			Help:      "Interesting inputs kept by a client",
		}, []string{"client"}),
		objectives: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gramfuzz",
			Name:      "objectives",
			Help:      "Objectives found by a client",
		}, []string{"client"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gramfuzz",
			Name:      "events_total",
			Help:      "Events received from clients by kind",
		}, []string{"kind"}),
	}
}

// Gatherer exposes the registry, e.g. for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

func (m *Metrics) observe(ev engine.Event, c ClientStats) {
	m.events.WithLabelValues(ev.Kind.String()).Inc()
	m.executions.WithLabelValues(c.ID).Set(float64(c.Executions))
	m.corpus.WithLabelValues(c.ID).Set(float64(c.Corpus))
	m.objectives.WithLabelValues(c.ID).Set(float64(c.Objectives))
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
