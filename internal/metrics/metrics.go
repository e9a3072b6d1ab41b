// Package metrics регистрирует метрики Prometheus для обращений к удалённому
// сервису и обновлений списка подписчиков.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subscriber_desk"

// Результаты обновления списка.
const (
	RefreshApplied = "applied"
	RefreshStale   = "stale"
	RefreshFailed  = "failed"
)

var (
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_requests_total",
		Help:      "Requests to the hosted identity service and record store.",
	}, []string{"service", "op", "result"})

	remoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "Latency of requests to the hosted backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "op"})

	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Subscriber list refreshes by outcome.",
	}, []string{"result"})

	subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Subscribers in the last applied snapshot by status.",
	}, []string{"status"})
)

// ObserveRemote учитывает один вызов удалённого сервиса.
func ObserveRemote(service, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	remoteRequests.WithLabelValues(service, op, result).Inc()
	remoteDuration.WithLabelValues(service, op).Observe(time.Since(start).Seconds())
}

// Refresh учитывает исход обновления списка.
func Refresh(result string) {
	refreshes.WithLabelValues(result).Inc()
}

// SetSubscribers выставляет численность подписчиков по статусам.
func SetSubscribers(active, expired, endingSoon int) {
	subscribers.WithLabelValues("active").Set(float64(active))
	subscribers.WithLabelValues("expired").Set(float64(expired))
	subscribers.WithLabelValues("ending_soon").Set(float64(endingSoon))
}
