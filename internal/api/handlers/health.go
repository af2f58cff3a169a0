// health.go — обработчики health endpoints Parco Verismo.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL, Redis)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
)

const (
	serviceName    = "parco-verismo"
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pgChecker    ReadinessChecker
	redisChecker ReadinessChecker
	promHandler  http.Handler
	now          func() time.Time
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker nil — readiness вернёт "fail". redisChecker nil — throttle
// не настроен, проверка считается пройденной.
func NewHealthHandler(pgChecker, redisChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:    pgChecker,
		redisChecker: redisChecker,
		promHandler:  promhttp.Handler(),
		now:          time.Now,
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL healthCheckResult `json:"postgresql"`
		Redis      healthCheckResult `json:"redis"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if h.pgChecker != nil {
		st, msg := h.pgChecker.CheckReady()
		resp.Checks.PostgreSQL = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks.PostgreSQL = healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}

	if h.redisChecker != nil {
		st, msg := h.redisChecker.CheckReady()
		resp.Checks.Redis = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks.Redis = healthCheckResult{Status: statusOK, Message: "throttle отключён"}
	}

	resp.Status = overallStatus(resp.Checks.PostgreSQL.Status, resp.Checks.Redis.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus — худший из статусов: fail > degraded > ok.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
