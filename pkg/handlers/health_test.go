package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/warehouse"
)

func newHealthMux(t *testing.T, conn *scriptedConn) *http.ServeMux {
	t.Helper()
	registry := warehouse.NewRegistry(func(context.Context, string) (warehouse.Connector, error) {
		return conn, nil
	}, zap.NewNop())
	t.Cleanup(func() { _ = registry.Close() })

	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), registry, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestHealthcheck(t *testing.T) {
	t.Run("healthy when warehouse answers", func(t *testing.T) {
		conn := &scriptedConn{queryFn: func(string, []any) ([]map[string]any, error) {
			return []map[string]any{{"health_check": int64(1)}}, nil
		}}
		rec := httptest.NewRecorder()
		newHealthMux(t, conn).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		components := body["components"].(map[string]any)
		assert.Equal(t, "healthy", components["api"])
		assert.Equal(t, "healthy", components["database"])
		assert.NotEmpty(t, body["timestamp"])

		assert.Equal(t, []string{"SELECT 1 AS health_check"}, conn.queries)
	})

	t.Run("degraded when warehouse is unreachable", func(t *testing.T) {
		conn := &scriptedConn{failAll: errors.New("connection refused")}
		rec := httptest.NewRecorder()
		newHealthMux(t, conn).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthcheck", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
		components := body["components"].(map[string]any)
		assert.Equal(t, "healthy", components["api"])
		assert.Equal(t, "unhealthy", components["database"])
	})
}

func TestRootBanner(t *testing.T) {
	rec := httptest.NewRecorder()
	newHealthMux(t, &scriptedConn{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rowgate", body["service"])
	assert.Equal(t, "running", body["status"])
}
