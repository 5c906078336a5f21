package warehouse

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Opener constructs a connector for one warehouse id.
type Opener func(ctx context.Context, warehouseID string) (Connector, error)

// Registry is the process-wide cache of warehouse connectors, keyed by
// warehouse id. Lookups are safe for concurrent use and at most one
// connector is constructed per id; later callers reuse it. There is no
// per-connector health eviction; the cache is cleared wholesale on Close
// and rebuilt lazily on next use.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	open       Opener
	logger     *zap.Logger
	closed     bool
}

// NewRegistry creates a registry that opens connectors with open.
func NewRegistry(open Opener, logger *zap.Logger) *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
		open:       open,
		logger:     logger,
	}
}

// Get returns the cached connector for warehouseID, constructing it on first
// use. Construction happens under the write lock so concurrent first callers
// cannot race a second connector into existence.
func (r *Registry) Get(ctx context.Context, warehouseID string) (Connector, error) {
	if warehouseID == "" {
		return nil, fmt.Errorf("warehouse id must not be empty")
	}

	r.mu.RLock()
	conn, ok := r.connectors[warehouseID]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}
	if closed {
		return nil, fmt.Errorf("connector registry is closed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have opened it while we waited for the lock.
	if conn, ok := r.connectors[warehouseID]; ok {
		return conn, nil
	}
	if r.closed {
		return nil, fmt.Errorf("connector registry is closed")
	}

	conn, err := r.open(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("open connector for warehouse %s: %w", warehouseID, err)
	}
	r.connectors[warehouseID] = conn
	r.logger.Info("opened warehouse connector", zap.String("warehouse_id", warehouseID))
	return conn, nil
}

// Close closes every cached connector and empties the cache. Idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for id, conn := range r.connectors {
		if err := conn.Close(); err != nil {
			r.logger.Warn("failed to close warehouse connector",
				zap.String("warehouse_id", id), zap.Error(err))
		}
	}
	r.connectors = make(map[string]Connector)
	r.logger.Info("connector registry closed")
	return nil
}
