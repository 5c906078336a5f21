package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlserver" database/sql driver.
	_ "github.com/microsoft/go-mssqldb"

	"github.com/rowgate/rowgate/pkg/sqlbuild"
)

// SQLServerOptions configures a SQL Server-backed warehouse connector. SQL
// Server's three-part database.schema.table names map directly onto the
// catalog.schema.table hierarchy.
type SQLServerOptions struct {
	DSN            string
	CommandTimeout time.Duration
	MaxOpenConns   int
}

// SQLServerConnector executes statements through go-mssqldb. The driver binds
// positional arguments to @pN markers, so `?` markers are rewritten before
// execution.
type SQLServerConnector struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLServerConnector opens a connector for the given DSN.
func NewSQLServerConnector(opts SQLServerOptions) (*SQLServerConnector, error) {
	db, err := sql.Open("sqlserver", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse connection: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return &SQLServerConnector{db: db, timeout: opts.CommandTimeout}, nil
}

func (c *SQLServerConnector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Query implements Connector.
func (c *SQLServerConnector) Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, n := RewritePlaceholders(sqlText, StyleAtP)
	if n != len(params) {
		return nil, fmt.Errorf("statement has %d placeholders but %d parameters were supplied", n, len(params))
	}

	rows, err := c.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Insert implements Connector.
func (c *SQLServerConnector) Insert(ctx context.Context, path sqlbuild.TablePath, rowsToInsert []map[string]any) (int, error) {
	if len(rowsToInsert) == 0 {
		return 0, nil
	}

	stmtText, params, err := sqlbuild.BuildInsert(path, rowsToInsert)
	if err != nil {
		return 0, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, _ := RewritePlaceholders(stmtText, StyleAtP)
	res, err := c.db.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return int(affected), nil
}

// Close implements Connector.
func (c *SQLServerConnector) Close() error {
	return c.db.Close()
}

var _ Connector = (*SQLServerConnector)(nil)
