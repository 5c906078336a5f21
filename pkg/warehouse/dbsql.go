package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	dbsql "github.com/databricks/databricks-sql-go"

	"github.com/rowgate/rowgate/pkg/sqlbuild"
)

// DatabricksOptions configures one SQL warehouse connector.
type DatabricksOptions struct {
	Host           string
	Port           int
	WarehouseID    string
	Tokens         *TokenHolder
	DefaultCatalog string
	DefaultSchema  string
	CommandTimeout time.Duration
	MaxOpenConns   int
}

// DatabricksConnector executes statements against a Databricks SQL warehouse
// through the databricks-sql-go driver. The driver binds parameters with
// named `:pN` markers, so `?` markers are rewritten before execution.
type DatabricksConnector struct {
	db      *sql.DB
	timeout time.Duration
}

// holderAuthenticator signs each driver request with the current token from
// the holder, so background credential refresh takes effect without
// reopening the connector.
type holderAuthenticator struct {
	tokens *TokenHolder
}

func (a *holderAuthenticator) Authenticate(r *http.Request) error {
	token := a.tokens.Token()
	if token == "" {
		return fmt.Errorf("no warehouse access token available")
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// NewDatabricksConnector opens a connector for one warehouse id. The HTTP
// path is derived from the warehouse id the same way the SQL driver's DSN
// form does.
func NewDatabricksConnector(opts DatabricksOptions) (*DatabricksConnector, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("warehouse host must be configured")
	}
	port := opts.Port
	if port == 0 {
		port = 443
	}

	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(opts.Host),
		dbsql.WithPort(port),
		dbsql.WithHTTPPath("/sql/1.0/warehouses/"+opts.WarehouseID),
		dbsql.WithAuthenticator(&holderAuthenticator{tokens: opts.Tokens}),
		dbsql.WithInitialNamespace(opts.DefaultCatalog, opts.DefaultSchema),
		dbsql.WithUserAgentEntry("rowgate"),
	)
	if err != nil {
		return nil, fmt.Errorf("build databricks connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	return &DatabricksConnector{db: db, timeout: opts.CommandTimeout}, nil
}

func (c *DatabricksConnector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// namedParams wraps positional values as the driver's named parameters,
// matching the :p1, :p2, ... markers produced by the placeholder rewrite.
func namedParams(params []any) []any {
	out := make([]any, len(params))
	for i, v := range params {
		out[i] = dbsql.Parameter{Name: "p" + strconv.Itoa(i+1), Value: v}
	}
	return out
}

// Query implements Connector.
func (c *DatabricksConnector) Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, n := RewritePlaceholders(sqlText, StyleNamed)
	if n != len(params) {
		return nil, fmt.Errorf("statement has %d placeholders but %d parameters were supplied", n, len(params))
	}

	rows, err := c.db.QueryContext(ctx, stmt, namedParams(params)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Insert implements Connector.
func (c *DatabricksConnector) Insert(ctx context.Context, path sqlbuild.TablePath, rowsToInsert []map[string]any) (int, error) {
	if len(rowsToInsert) == 0 {
		return 0, nil
	}

	stmtText, params, err := sqlbuild.BuildInsert(path, rowsToInsert)
	if err != nil {
		return 0, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, _ := RewritePlaceholders(stmtText, StyleNamed)
	res, err := c.db.ExecContext(ctx, stmt, namedParams(params)...)
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
func (c *DatabricksConnector) Close() error {
	return c.db.Close()
}

// scanRows reads a database/sql result set into column→value maps.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ Connector = (*DatabricksConnector)(nil)
