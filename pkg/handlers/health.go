package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/config"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// HealthResponse reports overall service health and the state of each
// component. The endpoint always answers 200; degradation is expressed in
// the body so probes distinguish "down" from "up but can't reach the
// warehouse".
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  string            `json:"timestamp"`
}

// HealthHandler handles the health check and root banner endpoints.
type HealthHandler struct {
	cfg        *config.Config
	connectors *warehouse.Registry
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, connectors *warehouse.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, connectors: connectors, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/healthcheck", h.Healthcheck)
	mux.HandleFunc("GET /{$}", h.Root)
}

// Root handles GET / with a minimal service banner.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{
		"service": "rowgate",
		"version": h.cfg.Version,
		"status":  "running",
	})
}

// Healthcheck handles GET /api/v1/healthcheck. The database component runs a
// real round trip against the configured warehouse.
func (h *HealthHandler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Components: map[string]string{
			"api":      "healthy",
			"database": "healthy",
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.checkDatabase(r); err != nil {
		h.logger.Warn("healthcheck database probe failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy"
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode healthcheck response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(r *http.Request) error {
	conn, err := h.connectors.Get(r.Context(), h.cfg.Warehouse.ID)
	if err != nil {
		return err
	}
	_, err = conn.Query(r.Context(), "SELECT 1 AS health_check", nil)
	return err
}
