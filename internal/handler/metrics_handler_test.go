package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/service"
)

func TestMetricsHandlerServesRegistry(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordSubstitution("assigned")
	h := NewMetricsHandler(metrics, nil, nil)

	router := newTestRouter(nil)
	router.GET("/metrics", h.Prometheus)
	router.GET("/health", h.Health)

	w := performJSON(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assigned")

	assert.Equal(t, http.StatusOK, performJSON(router, http.MethodGet, "/health", nil).Code)
}

func TestMetricsHandlerWithoutRegistry(t *testing.T) {
	router := newTestRouter(nil)
	router.GET("/metrics", NewMetricsHandler(nil, nil, nil).Prometheus)
	assert.Equal(t, http.StatusServiceUnavailable, performJSON(router, http.MethodGet, "/metrics", nil).Code)
}

func TestMetricsHandlerReadiness(t *testing.T) {
	up := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	cases := map[string]struct {
		deps   map[string]Pinger
		status int
		checks map[string]string
	}{
		"all up":     {map[string]Pinger{"postgres": up, "redis": up}, http.StatusOK, map[string]string{"postgres": "up", "redis": "up"}},
		"redis down": {map[string]Pinger{"postgres": up, "redis": down}, http.StatusServiceUnavailable, map[string]string{"postgres": "up", "redis": "down"}},
		"cache off":  {map[string]Pinger{"postgres": up, "redis": nil}, http.StatusOK, map[string]string{"postgres": "up"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(nil)
			router.GET("/ready", NewMetricsHandler(nil, tc.deps, nil).Ready)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tc.status, w.Code)
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.checks, body.Checks)
		})
	}
}
