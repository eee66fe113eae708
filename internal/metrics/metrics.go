// Package metrics exposes service counters in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "cultivo"

// Metrics holds the collectors of one service on a private registry
type Metrics struct {
	registry *prometheus.Registry

	readingsPublished *prometheus.CounterVec
	logsWritten       prometheus.Counter
	evaluations       *prometheus.CounterVec
	alertsRaised      *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

// New creates the collectors, labelled with the service name
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "readings_published_total",
			Help:        "Controller readings published to the daily-log topic.",
			ConstLabels: labels,
		}, []string{"result"}),
		logsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "daily_logs_written_total",
			Help:        "Daily logs upserted into the database.",
			ConstLabels: labels,
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "log_evaluations_total",
			Help:        "Daily logs run through the alert engine.",
			ConstLabels: labels,
		}, []string{"result"}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "alerts_raised_total",
			Help:        "Alerts raised per metric and severity.",
			ConstLabels: labels,
		}, []string{"metric", "severity"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "notifications_total",
			Help:        "Notifications delivered per category.",
			ConstLabels: labels,
		}, []string{"category", "result"}),
	}

	m.registry.MustRegister(
		m.readingsPublished,
		m.logsWritten,
		m.evaluations,
		m.alertsRaised,
		m.notifications,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePublish counts a reading handed to Kafka
func (m *Metrics) ObservePublish(err error) {
	m.readingsPublished.WithLabelValues(result(err)).Inc()
}

// ObserveLogsWritten counts upserted daily logs
func (m *Metrics) ObserveLogsWritten(n int) {
	m.logsWritten.Add(float64(n))
}

// ObserveEvaluation counts one alert engine run
func (m *Metrics) ObserveEvaluation(err error) {
	m.evaluations.WithLabelValues(result(err)).Inc()
}

// ObserveAlert counts a newly raised alert
func (m *Metrics) ObserveAlert(metric, severity string) {
	m.alertsRaised.WithLabelValues(metric, severity).Inc()
}

// ObserveNotification counts a notification delivery attempt
func (m *Metrics) ObserveNotification(category string, err error) {
	m.notifications.WithLabelValues(category, result(err)).Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the endpoint.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
