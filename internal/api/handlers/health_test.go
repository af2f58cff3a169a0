package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	status, message string
}

func (s stubChecker) CheckReady() (string, string) { return s.status, s.message }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name     string
		pg       ReadinessChecker
		redis    ReadinessChecker
		code     int
		status   string
		redisMsg string
	}{
		{"всё готово", stubChecker{statusOK, ""}, stubChecker{statusOK, ""}, http.StatusOK, statusOK, ""},
		{"без redis", stubChecker{statusOK, ""}, nil, http.StatusOK, statusOK, "throttle отключён"},
		{"redis недоступен", stubChecker{statusOK, ""}, stubChecker{statusDegraded, "timeout"}, http.StatusOK, statusDegraded, "timeout"},
		{"postgres недоступен", stubChecker{statusFail, "refused"}, stubChecker{statusDegraded, ""}, http.StatusServiceUnavailable, statusFail, ""},
		{"postgres не инициализирован", nil, nil, http.StatusServiceUnavailable, statusFail, "throttle отключён"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.redis)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.status, body["status"])
			redis := body["checks"].(map[string]any)["redis"].(map[string]any)
			if tt.redisMsg != "" {
				assert.Equal(t, tt.redisMsg, redis["message"])
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, statusOK, overallStatus())
	assert.Equal(t, statusDegraded, overallStatus(statusOK, statusDegraded))
	assert.Equal(t, statusFail, overallStatus(statusDegraded, statusFail, statusOK))
}
