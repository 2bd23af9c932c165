package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worldbuilder-agent/internal/domain"
)

const namespace = "worldbuilder"

// Oracle call stages.
const (
	StageSelection = "selection"
	StageHandler   = "handler"
)

// Recorder owns the router's collectors on a private registry.
type Recorder struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	requests  *prometheus.CounterVec
	oracle    *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Routing decisions by selected capability and decision source.",
			},
			[]string{"capability", "source"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Processed requests by outcome.",
			},
			[]string{"outcome"},
		),
		oracle: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_call_duration_seconds",
				Help:      "Latency of language model calls by stage.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"stage", "result"},
		),
	}
	r.registry.MustRegister(r.decisions, r.requests, r.oracle)
	return r
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveDecision(capability string, source domain.Source) {
	r.decisions.WithLabelValues(capability, string(source)).Inc()
}

func (r *Recorder) ObserveRequest(outcome string) {
	r.requests.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics endpoint on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type chatClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// InstrumentedLLM times every Chat call under a fixed stage label.
type InstrumentedLLM struct {
	next     chatClient
	observer prometheus.ObserverVec
	stage    string
}

func (r *Recorder) InstrumentLLM(next chatClient, stage string) *InstrumentedLLM {
	return &InstrumentedLLM{next: next, observer: r.oracle, stage: stage}
}

func (l *InstrumentedLLM) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	start := time.Now()
	out, err := l.next.Chat(ctx, req)
	result := "ok"
	if err != nil {
		result = "error"
	}
	l.observer.WithLabelValues(l.stage, result).Observe(time.Since(start).Seconds())
	return out, err
}
