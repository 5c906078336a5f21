package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/config"
	"github.com/rowgate/rowgate/pkg/handlers"
	"github.com/rowgate/rowgate/pkg/logging"
	"github.com/rowgate/rowgate/pkg/middleware"
	"github.com/rowgate/rowgate/pkg/services"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("warehouse_backend", cfg.Warehouse.Backend),
		zap.String("warehouse_id", cfg.Warehouse.ID),
		zap.String("warehouse_host", cfg.Warehouse.Host),
		zap.String("warehouse_dsn", logging.SanitizeConnectionString(cfg.Warehouse.DSN)),
		zap.Bool("audit_log_enabled", cfg.AuditLog.Enabled),
	)

	// Seed the credential holder and start the background refresher so
	// rotated tokens are picked up without reopening connectors.
	initialToken, err := cfg.Warehouse.TokenSource()(context.Background())
	if err != nil {
		logger.Warn("initial credential load failed, starting without a token",
			zap.String("error", logging.SanitizeError(err)))
	}
	tokens := warehouse.NewTokenHolder(initialToken)
	refresher := warehouse.NewTokenRefresher(tokens, cfg.Warehouse.TokenSource(), cfg.Warehouse.TokenRefreshInterval(), logger)
	refresher.Start()
	defer refresher.Stop()

	opener, err := warehouse.NewOpener(warehouse.OpenerOptions{
		Backend:        cfg.Warehouse.Backend,
		Host:           cfg.Warehouse.Host,
		Port:           cfg.Warehouse.Port,
		DSN:            cfg.Warehouse.DSN,
		Tokens:         tokens,
		DefaultCatalog: cfg.Warehouse.DefaultCatalog,
		DefaultSchema:  cfg.Warehouse.DefaultSchema,
		CommandTimeout: cfg.Warehouse.CommandTimeout(),
		MaxConns:       cfg.Warehouse.MaxConns,
	})
	if err != nil {
		logger.Fatal("Failed to configure warehouse backend", zap.Error(err))
	}
	connectors := warehouse.NewRegistry(opener, logger)
	defer func() { _ = connectors.Close() }()

	recordService := services.NewRecordService(cfg.Warehouse.AuditUser, logger)
	warehouseLog := services.NewWarehouseLogger(services.WarehouseLoggerOptions{
		Enabled:        cfg.AuditLog.Enabled,
		WarehouseID:    cfg.Warehouse.ID,
		DefaultCatalog: cfg.Warehouse.DefaultCatalog,
		DefaultSchema:  cfg.Warehouse.DefaultSchema,
		Table:          cfg.AuditLog.Table,
		User:           cfg.Warehouse.AuditUser,
	}, connectors, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, connectors, logger)
	healthHandler.RegisterRoutes(mux)

	recordsHandler := handlers.NewRecordsHandler(cfg, recordService, connectors, warehouseLog, logger)
	recordsHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting rowgate",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
		)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// buildLogger picks the zap profile for the environment: human-readable in
// local development, JSON elsewhere.
func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		logConfig := zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return logConfig.Build()
	}
	return zap.NewProduction()
}
