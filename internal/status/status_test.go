package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/status"
)

type fakeBackendChecker struct {
	err error
}

func (f fakeBackendChecker) PerformHealthCheck(context.Context) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"status": "ok"}, nil
}

type fakeStorageChecker struct {
	err error
}

func (f fakeStorageChecker) Ping(context.Context) error {
	return f.err
}

func getHealthz(t *testing.T, handler *status.Handler) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	recorder := httptest.NewRecorder()
	handler.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return recorder, body
}

func TestHealthz(t *testing.T) {
	t.Run("healthy when both sides answer", func(t *testing.T) {
		handler := status.NewHandler(fakeBackendChecker{}, fakeStorageChecker{})

		recorder, body := getHealthz(t, handler)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "ok", body["status"])

		services := body["services"].(map[string]interface{})
		assert.Equal(t, "healthy", services["backend"])
		assert.Equal(t, "healthy", services["storage"])
	})

	t.Run("degraded when the backend is down", func(t *testing.T) {
		handler := status.NewHandler(
			fakeBackendChecker{err: errors.New("connection refused")},
			fakeStorageChecker{},
		)

		recorder, body := getHealthz(t, handler)

		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
		assert.Equal(t, "degraded", body["status"])

		services := body["services"].(map[string]interface{})
		assert.Equal(t, "unhealthy", services["backend"])
		assert.Equal(t, "healthy", services["storage"])
	})

	t.Run("degraded when the storage is down", func(t *testing.T) {
		handler := status.NewHandler(
			fakeBackendChecker{},
			fakeStorageChecker{err: errors.New("no such directory")},
		)

		recorder, body := getHealthz(t, handler)

		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

		services := body["services"].(map[string]interface{})
		assert.Equal(t, "healthy", services["backend"])
		assert.Equal(t, "unhealthy", services["storage"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	handler := status.NewHandler(fakeBackendChecker{}, fakeStorageChecker{})

	recorder := httptest.NewRecorder()
	handler.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "go_goroutines")
}
