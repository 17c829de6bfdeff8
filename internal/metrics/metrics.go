package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codecommunity"

// Metrics 服务的 Prometheus 指标
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Likes        *prometheus.CounterVec
	Follows      *prometheus.CounterVec
	Articles     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Likes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state",
		}, []string{"state"}),
		Follows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_toggles_total",
			Help:      "Follow toggles by resulting state",
		}, []string{"state"}),
		Articles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_mutations_total",
			Help:      "Article writes by operation",
		}, []string{"op"}),
		gatherer: reg,
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Domain counters are no-ops on a nil *Metrics.
func (m *Metrics) LikeToggled(liked bool) {
	if m == nil {
		return
	}
	m.Likes.WithLabelValues(state(liked, "liked", "unliked")).Inc()
}

func (m *Metrics) FollowToggled(following bool) {
	if m == nil {
		return
	}
	m.Follows.WithLabelValues(state(following, "followed", "unfollowed")).Inc()
}

func (m *Metrics) ArticleMutated(op string) {
	if m == nil {
		return
	}
	m.Articles.WithLabelValues(op).Inc()
}

func state(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
