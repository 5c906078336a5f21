package services

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/logging"
	"github.com/rowgate/rowgate/pkg/sqlbuild"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// maxLoggedBodyBytes caps the request body persisted per log row.
const maxLoggedBodyBytes = 5000

// warehouseLogTimeout bounds each best-effort log write so a slow warehouse
// cannot pile up goroutines.
const warehouseLogTimeout = 15 * time.Second

// RequestInfo carries the request-scoped fields of one log entry.
type RequestInfo struct {
	Endpoint   string
	Method     string
	Body       []byte
	StatusCode int
	DurationMs float64
}

// WarehouseLoggerOptions configures the warehouse audit logger.
type WarehouseLoggerOptions struct {
	Enabled        bool
	WarehouseID    string
	DefaultCatalog string
	DefaultSchema  string
	Table          string
	User           string
}

// WarehouseLogger persists API errors and notable events to an api_log table
// in the warehouse itself. Every write is best effort: any failure is logged
// locally and swallowed, and a logger that is disabled or missing its target
// configuration degrades to a no-op. It never affects the response of the
// request being logged.
type WarehouseLogger struct {
	opts       WarehouseLoggerOptions
	connectors *warehouse.Registry
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	ready map[string]bool
}

// NewWarehouseLogger creates the audit logger. A nil registry or empty
// warehouse id yields a permanent no-op.
func NewWarehouseLogger(opts WarehouseLoggerOptions, connectors *warehouse.Registry, logger *zap.Logger) *WarehouseLogger {
	if opts.Table == "" {
		opts.Table = "api_log"
	}
	return &WarehouseLogger{
		opts:       opts,
		connectors: connectors,
		logger:     logger,
		now:        time.Now,
		ready:      make(map[string]bool),
	}
}

func (l *WarehouseLogger) active() bool {
	return l.opts.Enabled && l.connectors != nil && l.opts.WarehouseID != ""
}

// LogError records a failed request. The error's taxonomy kind becomes the
// persisted error_type; unhandled errors additionally capture a stack trace.
func (l *WarehouseLogger) LogError(ctx context.Context, err error, req RequestInfo) {
	if !l.active() || err == nil {
		return
	}
	appErr := apperrors.From(err)

	entry := map[string]any{
		"level":         "ERROR",
		"status_code":   appErr.StatusCode(),
		"error_type":    appErr.Kind.String(),
		"error_message": appErr.Message,
		"stack_trace":   nil,
	}
	if req.StatusCode != 0 {
		entry["status_code"] = req.StatusCode
	}
	if appErr.Kind == apperrors.KindUnhandled {
		entry["stack_trace"] = string(debug.Stack())
	}
	l.write(ctx, entry, req)
}

// LogEvent records a non-error event such as a security finding.
func (l *WarehouseLogger) LogEvent(ctx context.Context, level, message string, req RequestInfo) {
	if !l.active() {
		return
	}
	l.write(ctx, map[string]any{
		"level":         level,
		"status_code":   req.StatusCode,
		"error_type":    nil,
		"error_message": message,
		"stack_trace":   nil,
	}, req)
}

// bodyTarget is the subset of request bodies naming the table being acted on.
type bodyTarget struct {
	Catalog string `json:"catalog"`
	Schema  string `json:"schema"`
	Table   string `json:"table"`
}

func (l *WarehouseLogger) write(ctx context.Context, entry map[string]any, req RequestInfo) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("warehouse log write panicked", zap.Any("panic", r))
		}
	}()

	var target bodyTarget
	if len(req.Body) > 0 {
		// Best effort; an unparseable body just loses the target columns.
		_ = json.Unmarshal(req.Body, &target)
	}
	catalog := target.Catalog
	if catalog == "" {
		catalog = l.opts.DefaultCatalog
	}
	schema := target.Schema
	if schema == "" {
		schema = l.opts.DefaultSchema
	}
	if catalog == "" || schema == "" {
		return
	}

	path, err := sqlbuild.NewTablePath(catalog, schema, l.opts.Table)
	if err != nil {
		l.logger.Warn("invalid warehouse log target", zap.Error(err))
		return
	}

	// Detach from the request context: the response has already been sent and
	// its context may be canceled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), warehouseLogTimeout)
	defer cancel()

	conn, err := l.connectors.Get(ctx, l.opts.WarehouseID)
	if err != nil {
		l.logger.Warn("warehouse log connection failed",
			zap.String("error", logging.SanitizeError(err)))
		return
	}

	if err := l.ensureLogTable(ctx, conn, path); err != nil {
		l.logger.Warn("warehouse log table unavailable", zap.String("table", path.String()), zap.Error(err))
		return
	}

	row := map[string]any{
		"log_id":            uuid.NewString(),
		"timestamp":         l.now().UTC().Format(time.RFC3339),
		"endpoint":          req.Endpoint,
		"method":            req.Method,
		"request_body":      truncateBody(req.Body),
		"user":              l.opts.User,
		"catalog":           catalog,
		"schema":            schema,
		"table_name":        target.Table,
		"execution_time_ms": req.DurationMs,
	}
	for k, v := range entry {
		row[k] = v
	}

	if _, err := conn.Insert(ctx, path, []map[string]any{row}); err != nil {
		l.logger.Warn("warehouse log insert failed", zap.String("table", path.String()), zap.Error(err))
	}
}

// ensureLogTable probes the log table once per catalog.schema and creates it
// when the probe fails. Success is cached for the process lifetime.
func (l *WarehouseLogger) ensureLogTable(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath) error {
	key := path.Catalog() + "." + path.Schema()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready[key] {
		return nil
	}

	probe := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", path)
	if _, err := conn.Query(ctx, probe, nil); err == nil {
		l.ready[key] = true
		return nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		log_id STRING NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		level STRING NOT NULL,
		endpoint STRING,
		method STRING,
		status_code INT,
		error_type STRING,
		error_message STRING,
		stack_trace STRING,
		request_body STRING,
		user STRING,
		catalog STRING,
		schema STRING,
		table_name STRING,
		execution_time_ms DOUBLE
	)`, path)
	if _, err := conn.Query(ctx, ddl, nil); err != nil {
		return err
	}
	l.ready[key] = true
	return nil
}

func truncateBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if len(body) > maxLoggedBodyBytes {
		return string(body[:maxLoggedBodyBytes]) + "... (truncated)"
	}
	return string(body)
}
