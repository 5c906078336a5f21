// Package models defines the request and response shapes for the records API
// along with the fixed audit envelope attached to every managed row.
package models

// Audit envelope column names. These are appended to every table the service
// creates and injected into every row it inserts.
const (
	ColRecordUUID = "record_uuid"
	ColIsDeleted  = "is_deleted"
	ColInsertedAt = "inserted_at"
	ColInsertedBy = "inserted_by"
	ColUpdatedAt  = "updated_at"
	ColUpdatedBy  = "updated_by"
	ColDeletedAt  = "deleted_at"
	ColDeletedBy  = "deleted_by"
)

// AuditColumns lists the envelope columns in DDL order.
var AuditColumns = []string{
	ColRecordUUID,
	ColIsDeleted,
	ColInsertedAt,
	ColInsertedBy,
	ColUpdatedAt,
	ColUpdatedBy,
	ColDeletedAt,
	ColDeletedBy,
}

// IsAuditColumn reports whether name is one of the fixed envelope columns.
func IsAuditColumn(name string) bool {
	for _, c := range AuditColumns {
		if name == c {
			return true
		}
	}
	return false
}

// FilterCondition is one structured predicate applied to a read, update, or
// delete. Value is a scalar for comparison operators and a non-empty list
// for IN.
type FilterCondition struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

// ColumnDefinition declares one column of a table schema. Nullable defaults
// to true when omitted from the request payload.
type ColumnDefinition struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// IsNullable returns the declared nullability, defaulting to true.
func (c ColumnDefinition) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// TableResponse is the common response body for all record operations.
// Count is -1 for filter-based mutations, whose affected-row count is not
// known without a second scan.
type TableResponse struct {
	Data  []map[string]any `json:"data"`
	Count int              `json:"count"`
	Total *int             `json:"total"`
}

// ReadQuery holds the parsed query parameters of a read request.
type ReadQuery struct {
	Catalog string
	Schema  string
	Table   string
	Limit   int
	Offset  int
	Columns string
	Filters []FilterCondition
}

// MaxReadLimit caps the number of rows a single read may return.
const MaxReadLimit = 1000

// WriteRequest is the body of a write request.
type WriteRequest struct {
	Catalog          string             `json:"catalog"`
	Schema           string             `json:"schema"`
	Table            string             `json:"table"`
	Data             []map[string]any   `json:"data"`
	AutoCreate       bool               `json:"auto_create"`
	SchemaDefinition []ColumnDefinition `json:"schema_definition,omitempty"`
}

// BulkUpdate pairs one key value with its own set of column updates.
type BulkUpdate struct {
	KeyValue any            `json:"key_value"`
	Updates  map[string]any `json:"updates"`
}

// UpdateRequest is the body of an update request. Exactly one of KeyValue,
// KeyValues, BulkUpdates, or Filters selects the strategy.
type UpdateRequest struct {
	Catalog     string            `json:"catalog,omitempty"`
	Schema      string            `json:"schema,omitempty"`
	Table       string            `json:"table"`
	KeyColumn   string            `json:"key_column,omitempty"`
	KeyValue    any               `json:"key_value,omitempty"`
	KeyValues   []any             `json:"key_values,omitempty"`
	BulkUpdates []BulkUpdate      `json:"bulk_updates,omitempty"`
	Filters     []FilterCondition `json:"filters,omitempty"`
	Updates     map[string]any    `json:"updates,omitempty"`
}

// DeleteRequest is the body of a delete request. Exactly one of KeyValue,
// KeyValues, or Filters selects the strategy. Soft defaults to true.
type DeleteRequest struct {
	Catalog   string            `json:"catalog,omitempty"`
	Schema    string            `json:"schema,omitempty"`
	Table     string            `json:"table"`
	KeyColumn string            `json:"key_column,omitempty"`
	KeyValue  any               `json:"key_value,omitempty"`
	KeyValues []any             `json:"key_values,omitempty"`
	Filters   []FilterCondition `json:"filters,omitempty"`
	Soft      *bool             `json:"soft,omitempty"`
}

// IsSoft returns the requested delete mode, defaulting to soft.
func (r *DeleteRequest) IsSoft() bool {
	return r.Soft == nil || *r.Soft
}
