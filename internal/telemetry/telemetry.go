// Package telemetry wires up structured logging and Prometheus metrics
// for the server command.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pkt.systems/pslog"
)

// NewLogger builds the process logger from environment configuration
// (PREFIX_LOG_LEVEL, PREFIX_LOG_MODE, ...), falling back to structured
// stderr output at info level.
func NewLogger(envPrefix string) pslog.Logger {
	return pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix(envPrefix),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	)
}

// Metrics holds the counters the server exposes.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	ResponseErrors   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	NotificationsOut prometheus.Counter
	registry         *prometheus.Registry
}

// NewMetrics constructs and registers the server's metric set against a
// fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facilityd_requests_total",
			Help: "Requests handled, by message type.",
		}, []string{"message_type"}),
		ResponseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facilityd_response_errors_total",
			Help: "ERROR responses sent, by message type.",
		}, []string{"message_type"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facilityd_dedup_cache_hits_total",
			Help: "Requests served from the at-most-once response cache.",
		}),
		NotificationsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facilityd_notifications_sent_total",
			Help: "Monitor notifications sent to subscribed clients.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal, m.ResponseErrors, m.CacheHits, m.NotificationsOut)
	return m
}

// ObserveRequest records one handled request of the given message type.
func (m *Metrics) ObserveRequest(messageType uint8) {
	m.RequestsTotal.WithLabelValues(messageTypeLabel(messageType)).Inc()
}

// ObserveResponseError records one ERROR response for the given message
// type.
func (m *Metrics) ObserveResponseError(messageType uint8) {
	m.ResponseErrors.WithLabelValues(messageTypeLabel(messageType)).Inc()
}

func messageTypeLabel(mt uint8) string {
	return fmt.Sprintf("%d", mt)
}

// Handler exposes the metrics registry over HTTP for Prometheus scrape.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ServeHTTP starts a /metrics endpoint on addr and serves it until ctx
// is cancelled. It returns once the listener is bound; serve errors
// after that point are only logged.
func (m *Metrics) ServeHTTP(ctx context.Context, addr string, log pslog.Logger) (func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("telemetry.metrics_server_failed", "err", err)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.Close, nil
}
