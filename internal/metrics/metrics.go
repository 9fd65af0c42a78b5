// Package metrics - метрики Prometheus движка отчётов.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток.
const (
	ResultOK       = "ok"
	ResultQueued   = "queued"
	ResultRejected = "rejected"
	ResultNoop     = "noop"
	ResultError    = "error"
)

var (
	AlertsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vialert_alerts_submitted_total",
		Help: "Отправленные отчёты по типу и результату",
	}, []string{"type", "result"})

	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vialert_votes_total",
		Help: "Голоса по направлению и результату",
	}, []string{"direction", "result"})

	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vialert_promotions_total",
		Help: "Отчёты, набравшие порог подтверждений",
	})

	SweepDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vialert_sweep_deletions_total",
		Help: "Удаления при очистке по причине и результату",
	}, []string{"reason", "result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vialert_sweep_duration_seconds",
		Help:    "Длительность одного прохода очистки",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	VisibleAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vialert_visible_alerts",
		Help: "Отчёты в видимом наборе после последней очистки",
	})

	OutboxSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vialert_outbox_size",
		Help: "Отчёты в офлайн-очереди",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vialert_ws_clients",
		Help: "Подключённые websocket-клиенты",
	})

	ExternalRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vialert_external_request_duration_seconds",
		Help:    "Запросы к геокодеру и маршрутизатору",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "result"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vialert_http_request_duration_seconds",
		Help:    "HTTP запросы по маршруту и статусу",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveExternal записывает длительность внешнего запроса.
func ObserveExternal(provider string, started time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	ExternalRequests.WithLabelValues(provider, result).Observe(time.Since(started).Seconds())
}
