package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/config"
	"github.com/rowgate/rowgate/pkg/models"
	"github.com/rowgate/rowgate/pkg/services"
	"github.com/rowgate/rowgate/pkg/sqlbuild"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// maxRequestBodyBytes bounds how much of a request body is read. Bulk writes
// are the largest legitimate payloads and stay well under this.
const maxRequestBodyBytes = 10 << 20

// RecordsHandler exposes the four record operations. Every response is either
// a TableResponse or the error envelope; nothing else leaves this handler.
type RecordsHandler struct {
	cfg        *config.Config
	svc        *services.RecordService
	connectors *warehouse.Registry
	dblog      *services.WarehouseLogger
	logger     *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(cfg *config.Config, svc *services.RecordService, connectors *warehouse.Registry, dblog *services.WarehouseLogger, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{cfg: cfg, svc: svc, connectors: connectors, dblog: dblog, logger: logger}
}

// RegisterRoutes registers the record routes on the given mux.
func (h *RecordsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/v1/records"
	mux.HandleFunc("GET "+base+"/read", h.Read)
	mux.HandleFunc("POST "+base+"/write", h.Write)
	mux.HandleFunc("PUT "+base+"/update", h.Update)
	mux.HandleFunc("DELETE "+base+"/delete", h.Delete)
}

// Read handles GET /api/v1/records/read.
func (h *RecordsHandler) Read(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q, err := h.parseReadQuery(r)
	if err != nil {
		h.fail(w, r, err, nil, start)
		return
	}

	path, err := sqlbuild.NewTablePath(q.Catalog, q.Schema, q.Table)
	if err != nil {
		h.fail(w, r, err, nil, start)
		return
	}

	conn, err := h.connection(r)
	if err != nil {
		h.fail(w, r, err, nil, start)
		return
	}

	resp, err := h.svc.Read(r.Context(), conn, path, q)
	if err != nil {
		h.fail(w, r, err, nil, start)
		return
	}
	h.ok(w, http.StatusOK, resp)
}

// Write handles POST /api/v1/records/write.
func (h *RecordsHandler) Write(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.WriteRequest
	body, err := h.decode(r, &req)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}
	if len(req.Data) == 0 {
		h.fail(w, r, apperrors.Validation("data must not be empty"), body, start)
		return
	}

	path, err := h.tablePath(req.Catalog, req.Schema, req.Table)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	conn, err := h.connection(r)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	resp, err := h.svc.Write(r.Context(), conn, path, req.Data, req.AutoCreate, req.SchemaDefinition)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}
	h.ok(w, http.StatusCreated, resp)
}

// Update handles PUT /api/v1/records/update.
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.UpdateRequest
	body, err := h.decode(r, &req)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	strategy, err := req.Strategy()
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	path, err := h.tablePath(req.Catalog, req.Schema, req.Table)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	conn, err := h.connection(r)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	resp, err := h.svc.Update(r.Context(), conn, path, strategy, req.Updates)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}
	h.ok(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/records/delete.
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.DeleteRequest
	body, err := h.decode(r, &req)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	strategy, err := req.Strategy()
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	path, err := h.tablePath(req.Catalog, req.Schema, req.Table)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	conn, err := h.connection(r)
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}

	resp, err := h.svc.Delete(r.Context(), conn, path, strategy, req.IsSoft())
	if err != nil {
		h.fail(w, r, err, body, start)
		return
	}
	h.ok(w, http.StatusOK, resp)
}

// parseReadQuery validates the read endpoint's query parameters.
func (h *RecordsHandler) parseReadQuery(r *http.Request) (models.ReadQuery, error) {
	params := r.URL.Query()

	q := models.ReadQuery{
		Catalog: params.Get("catalog"),
		Schema:  params.Get("schema"),
		Table:   params.Get("table"),
		Limit:   100,
		Offset:  0,
		Columns: params.Get("columns"),
	}
	if q.Catalog == "" {
		q.Catalog = h.cfg.Warehouse.DefaultCatalog
	}
	if q.Schema == "" {
		q.Schema = h.cfg.Warehouse.DefaultSchema
	}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.Validationf("invalid limit: %s", raw)
		}
		q.Limit = limit
	}
	if q.Limit <= 0 || q.Limit > models.MaxReadLimit {
		return q, apperrors.Validationf("limit must be between 1 and %d", models.MaxReadLimit)
	}

	if raw := params.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.Validationf("invalid offset: %s", raw)
		}
		q.Offset = offset
	}
	if q.Offset < 0 {
		return q, apperrors.Validation("offset must not be negative")
	}

	if raw := params.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Filters); err != nil {
			return q, apperrors.Validation("filters must be a JSON array of conditions")
		}
	}
	return q, nil
}

// decode reads and unmarshals the request body, returning the raw bytes for
// the warehouse audit log regardless of outcome.
func (h *RecordsHandler) decode(r *http.Request, dst any) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return nil, apperrors.Validation("failed to read request body")
	}
	if len(body) == 0 {
		return nil, apperrors.Validation("request body must not be empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return body, apperrors.Validationf("invalid request body: %v", err)
	}
	return body, nil
}

// tablePath applies the configured catalog and schema defaults before
// validating the full path.
func (h *RecordsHandler) tablePath(catalog, schema, table string) (sqlbuild.TablePath, error) {
	if catalog == "" {
		catalog = h.cfg.Warehouse.DefaultCatalog
	}
	if schema == "" {
		schema = h.cfg.Warehouse.DefaultSchema
	}
	return sqlbuild.NewTablePath(catalog, schema, table)
}

// connection resolves the configured warehouse's connector.
func (h *RecordsHandler) connection(r *http.Request) (warehouse.Connector, error) {
	if h.cfg.Warehouse.ID == "" {
		return nil, apperrors.Configuration("warehouse id is not configured")
	}
	return h.connectors.Get(r.Context(), h.cfg.Warehouse.ID)
}

func (h *RecordsHandler) ok(w http.ResponseWriter, status int, resp *models.TableResponse) {
	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// fail writes the error envelope and hands the failure to the warehouse
// audit logger in the background. The response is complete before the log
// write starts, so logging can never alter it.
func (h *RecordsHandler) fail(w http.ResponseWriter, r *http.Request, err error, body []byte, start time.Time) {
	appErr := apperrors.From(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("record operation failed",
			zap.String("path", r.URL.Path),
			zap.String("error_type", appErr.Kind.String()),
			zap.Error(err),
		)
	} else {
		h.logger.Debug("record request rejected",
			zap.String("path", r.URL.Path),
			zap.String("error_type", appErr.Kind.String()),
			zap.String("message", appErr.Message),
		)
	}
	if writeErr := WriteError(w, err); writeErr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(writeErr))
	}

	info := services.RequestInfo{
		Endpoint:   r.URL.Path,
		Method:     r.Method,
		Body:       body,
		StatusCode: appErr.StatusCode(),
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	go h.dblog.LogError(r.Context(), err, info)
}
