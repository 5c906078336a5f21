package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

func newLoggerWithConn(t *testing.T, opts WarehouseLoggerOptions, conn *fakeConn) *WarehouseLogger {
	t.Helper()
	registry := warehouse.NewRegistry(func(context.Context, string) (warehouse.Connector, error) {
		return conn, nil
	}, zap.NewNop())
	l := NewWarehouseLogger(opts, registry, zap.NewNop())
	l.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	return l
}

func enabledOpts() WarehouseLoggerOptions {
	return WarehouseLoggerOptions{
		Enabled:        true,
		WarehouseID:    "wh1",
		DefaultCatalog: "main",
		DefaultSchema:  "ops",
		User:           "tester",
	}
}

func TestWarehouseLoggerDisabled(t *testing.T) {
	conn := &fakeConn{}
	opts := enabledOpts()
	opts.Enabled = false
	l := newLoggerWithConn(t, opts, conn)

	l.LogError(context.Background(), apperrors.Validation("bad"), RequestInfo{Endpoint: "/x"})
	assert.Empty(t, conn.queries)
	assert.Empty(t, conn.inserts)
}

func TestWarehouseLoggerMissingWarehouseID(t *testing.T) {
	conn := &fakeConn{}
	opts := enabledOpts()
	opts.WarehouseID = ""
	l := newLoggerWithConn(t, opts, conn)

	l.LogError(context.Background(), apperrors.Validation("bad"), RequestInfo{})
	assert.Empty(t, conn.inserts)
}

func TestWarehouseLoggerWritesEntry(t *testing.T) {
	probed := false
	conn := &fakeConn{queryFn: func(stmt string, _ []any) ([]map[string]any, error) {
		if strings.HasPrefix(stmt, "SELECT 1 FROM") {
			probed = true
			return nil, errors.New("table not found")
		}
		return []map[string]any{}, nil
	}}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	body := []byte(`{"catalog":"analytics","schema":"sales","table":"orders","data":[{}]}`)
	l.LogError(context.Background(), apperrors.Validation("data must not be empty"), RequestInfo{
		Endpoint:   "/api/v1/records/write",
		Method:     "POST",
		Body:       body,
		StatusCode: 400,
		DurationMs: 12.5,
	})

	assert.True(t, probed)
	_, _, created := conn.queryContaining("CREATE TABLE IF NOT EXISTS analytics.sales.api_log")
	assert.True(t, created)

	require.Len(t, conn.inserts, 1)
	row := conn.inserts[0][0]
	assert.Equal(t, "ERROR", row["level"])
	assert.Equal(t, "ValidationError", row["error_type"])
	assert.Equal(t, "data must not be empty", row["error_message"])
	assert.Equal(t, 400, row["status_code"])
	assert.Equal(t, "/api/v1/records/write", row["endpoint"])
	assert.Equal(t, "POST", row["method"])
	assert.Equal(t, "analytics", row["catalog"])
	assert.Equal(t, "sales", row["schema"])
	assert.Equal(t, "orders", row["table_name"])
	assert.Equal(t, "tester", row["user"])
	assert.Equal(t, 12.5, row["execution_time_ms"])
	assert.NotEmpty(t, row["log_id"])
	assert.Equal(t, "2026-08-01T12:00:00Z", row["timestamp"])

	// Second write reuses the cached table and skips probing.
	conn.queries = nil
	l.LogError(context.Background(), apperrors.Validation("again"), RequestInfo{Body: body})
	_, _, reprobed := conn.queryContaining("SELECT 1 FROM")
	assert.False(t, reprobed)
	assert.Len(t, conn.inserts, 2)
}

func TestWarehouseLoggerFallsBackToDefaults(t *testing.T) {
	conn := &fakeConn{}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	l.LogEvent(context.Background(), "WARNING", "injection pattern observed", RequestInfo{
		Endpoint: "/api/v1/records/read",
		Method:   "GET",
	})

	require.Len(t, conn.inserts, 1)
	row := conn.inserts[0][0]
	assert.Equal(t, "main", row["catalog"])
	assert.Equal(t, "ops", row["schema"])
	assert.Equal(t, "WARNING", row["level"])
	assert.Equal(t, "injection pattern observed", row["error_message"])
}

func TestWarehouseLoggerNoTarget(t *testing.T) {
	conn := &fakeConn{}
	opts := enabledOpts()
	opts.DefaultCatalog = ""
	opts.DefaultSchema = ""
	l := newLoggerWithConn(t, opts, conn)

	l.LogError(context.Background(), apperrors.Validation("bad"), RequestInfo{})
	assert.Empty(t, conn.inserts)
}

func TestWarehouseLoggerTruncatesBody(t *testing.T) {
	conn := &fakeConn{}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	long := `{"catalog":"main","schema":"ops","padding":"` + strings.Repeat("x", 6000) + `"}`
	l.LogError(context.Background(), apperrors.Validation("bad"), RequestInfo{Body: []byte(long)})

	require.Len(t, conn.inserts, 1)
	logged, ok := conn.inserts[0][0]["request_body"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(logged, "... (truncated)"))
	assert.Len(t, logged, maxLoggedBodyBytes+len("... (truncated)"))
}

func TestWarehouseLoggerSwallowsFailures(t *testing.T) {
	conn := &fakeConn{insertErr: errors.New("warehouse offline")}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	assert.NotPanics(t, func() {
		l.LogError(context.Background(), apperrors.Database("boom", nil), RequestInfo{})
	})
}

func TestWarehouseLoggerStackTraceForUnhandled(t *testing.T) {
	conn := &fakeConn{}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	l.LogError(context.Background(), errors.New("nil pointer somewhere"), RequestInfo{})

	require.Len(t, conn.inserts, 1)
	row := conn.inserts[0][0]
	assert.Equal(t, "UnhandledException", row["error_type"])
	trace, ok := row["stack_trace"].(string)
	require.True(t, ok)
	assert.Contains(t, trace, "goroutine")
}

func TestWarehouseLoggerEnsureFailure(t *testing.T) {
	conn := &fakeConn{queryFn: func(stmt string, _ []any) ([]map[string]any, error) {
		return nil, errors.New("permission denied")
	}}
	l := newLoggerWithConn(t, enabledOpts(), conn)

	l.LogError(context.Background(), apperrors.Validation("bad"), RequestInfo{})
	assert.Empty(t, conn.inserts)
}
