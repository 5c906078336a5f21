package warehouse

import (
	"context"
	"fmt"
	"time"
)

// Backend names the supported warehouse backends.
const (
	BackendDatabricks = "databricks"
	BackendPostgres   = "postgres"
	BackendSQLServer  = "sqlserver"
)

// OpenerOptions carries everything needed to construct connectors for the
// configured backend. For the Postgres and SQL Server backends the DSN is
// fixed per process and the warehouse id only keys the registry cache.
type OpenerOptions struct {
	Backend        string
	Host           string
	Port           int
	DSN            string
	Tokens         *TokenHolder
	DefaultCatalog string
	DefaultSchema  string
	CommandTimeout time.Duration
	MaxConns       int
}

// NewOpener returns the registry Opener for the configured backend.
func NewOpener(opts OpenerOptions) (Opener, error) {
	switch opts.Backend {
	case BackendDatabricks:
		return func(_ context.Context, warehouseID string) (Connector, error) {
			return NewDatabricksConnector(DatabricksOptions{
				Host:           opts.Host,
				Port:           opts.Port,
				WarehouseID:    warehouseID,
				Tokens:         opts.Tokens,
				DefaultCatalog: opts.DefaultCatalog,
				DefaultSchema:  opts.DefaultSchema,
				CommandTimeout: opts.CommandTimeout,
				MaxOpenConns:   opts.MaxConns,
			})
		}, nil
	case BackendPostgres:
		return func(ctx context.Context, _ string) (Connector, error) {
			return NewPostgresConnector(ctx, PostgresOptions{
				DSN:            opts.DSN,
				CommandTimeout: opts.CommandTimeout,
				MaxConns:       int32(opts.MaxConns),
			})
		}, nil
	case BackendSQLServer:
		return func(_ context.Context, _ string) (Connector, error) {
			return NewSQLServerConnector(SQLServerOptions{
				DSN:            opts.DSN,
				CommandTimeout: opts.CommandTimeout,
				MaxOpenConns:   opts.MaxConns,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse backend: %s", opts.Backend)
	}
}
