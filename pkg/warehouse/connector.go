// Package warehouse provides access to externally-managed SQL warehouses.
// A Connector executes parameterized statements against one warehouse; the
// Registry hands out at most one connector per warehouse id.
package warehouse

import (
	"context"

	"github.com/rowgate/rowgate/pkg/sqlbuild"
)

// Connector is the narrow interface the rest of the service consumes. Both
// operations may block on the network; everything else in the service is
// synchronous in-memory work. Failures are returned raw and wrapped into the
// error taxonomy at the call site. Connectors never retry; transient-failure
// handling belongs to the warehouse client itself.
type Connector interface {
	// Query executes sqlText with positional `?` bind parameters and returns
	// the result rows as column→value maps. Statements without result sets
	// (DDL, UPDATE, DELETE) return no rows.
	Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error)

	// Insert appends rows to the table in one statement and returns the
	// affected-row count, or -1 when the backend does not report one.
	Insert(ctx context.Context, path sqlbuild.TablePath, rows []map[string]any) (int, error)

	// Close releases the underlying connection resources.
	Close() error
}
