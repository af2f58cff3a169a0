// metrics.go — Prometheus HTTP метрики Parco Verismo:
// pv_http_requests_total, pv_http_request_duration_seconds.
// Путь в лейблах берётся из шаблона маршрута chi, чтобы slug и UUID
// не раздували кардинальность.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			// Шаблон маршрута известен только после маршрутизации
			path := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута chi (/api/v1/opere/{slug})
// или нормализованный путь, если маршрут не найден.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath сворачивает динамические сегменты для путей вне маршрутизатора.
// /api/v1/admin/richieste/<uuid> → /api/v1/admin/richieste/{id}
// /api/v1/opere/i-malavoglia → /api/v1/opere/{slug}
// Неизвестные пути схлопываются в "other".
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/home", "/api/v1/lang", "/api/v1/richieste":
		return path
	}

	const adminPrefix = "/api/v1/admin/richieste/"
	if rest, ok := strings.CutPrefix(path, adminPrefix); ok && rest != "" {
		switch rest {
		case "azioni", "export":
			return path
		}
		return adminPrefix + "{id}"
	}

	for _, section := range []string{"opere", "eventi", "notizie", "documenti", "itinerari"} {
		prefix := "/api/v1/" + section
		if path == prefix {
			return path
		}
		if rest, ok := strings.CutPrefix(path, prefix+"/"); ok && rest != "" && !strings.Contains(rest, "/") {
			return prefix + "/{slug}"
		}
	}

	return "other"
}
