package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики бизнес-логики.
var (
	requestsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pv_requests_submitted_total",
		Help: "Заявки через публичную форму по результату (created, invalid, throttled, error).",
	}, []string{"result"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pv_notifications_total",
		Help: "Отправленные уведомления по каналу, адресату и результату.",
	}, []string{"channel", "kind", "result"})

	irregularTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pv_request_irregular_transitions_total",
		Help: "Смены статуса в обход жизненного цикла запроса.",
	}, []string{"from", "to"})

	contentCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pv_content_cache_hits_total",
		Help: "Попадания в LRU-кэш каталога контента.",
	})
	contentCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pv_content_cache_misses_total",
		Help: "Промахи LRU-кэша каталога контента.",
	})
)
