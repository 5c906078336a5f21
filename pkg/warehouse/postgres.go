package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowgate/rowgate/pkg/sqlbuild"
)

// PostgresOptions configures a Postgres-backed warehouse connector, used for
// warehouse-compatible engines reachable over the Postgres wire protocol and
// for local development.
type PostgresOptions struct {
	DSN            string
	CommandTimeout time.Duration
	MaxConns       int32
	MinConns       int32
}

// PostgresConnector executes statements through a pgx connection pool. pgx
// binds parameters with $N markers, so `?` markers are rewritten before
// execution.
type PostgresConnector struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresConnector opens a pooled connector for the given DSN.
func NewPostgresConnector(ctx context.Context, opts PostgresOptions) (*PostgresConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}

	return &PostgresConnector{pool: pool, timeout: opts.CommandTimeout}, nil
}

func (c *PostgresConnector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Query implements Connector.
func (c *PostgresConnector) Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, n := RewritePlaceholders(sqlText, StyleDollar)
	if n != len(params) {
		return nil, fmt.Errorf("statement has %d placeholders but %d parameters were supplied", n, len(params))
	}

	rows, err := c.pool.Query(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Insert implements Connector.
func (c *PostgresConnector) Insert(ctx context.Context, path sqlbuild.TablePath, rowsToInsert []map[string]any) (int, error) {
	if len(rowsToInsert) == 0 {
		return 0, nil
	}

	stmtText, params, err := sqlbuild.BuildInsert(path, rowsToInsert)
	if err != nil {
		return 0, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, _ := RewritePlaceholders(stmtText, StyleDollar)
	tag, err := c.pool.Exec(ctx, stmt, params...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Close implements Connector.
func (c *PostgresConnector) Close() error {
	c.pool.Close()
	return nil
}

var _ Connector = (*PostgresConnector)(nil)
