package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// boardMetrics holds the collectors exported on /metrics. Each server owns
// its own registry so several servers can live in one process.
type boardMetrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	pageViews       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionsExpired prometheus.Counter
}

func newBoardMetrics() *boardMetrics {
	m := &boardMetrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pugboard_submissions_total",
			Help: "Form submissions by kind (post, reply) and result",
		}, []string{"kind", "result"}),
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pugboard_page_views_total",
			Help: "Rendered board and thread pages",
		}, []string{"view"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pugboard_http_request_duration_seconds",
			Help:    "Time taken to answer HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pugboard_sessions_expired_total",
			Help: "Sessions removed by the cleanup task",
		}),
	}
	m.registry.MustRegister(
		m.submissions,
		m.pageViews,
		m.requestDuration,
		m.sessionsExpired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *boardMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
