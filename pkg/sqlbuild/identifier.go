// Package sqlbuild turns structured, untrusted request input into safe,
// parameterized SQL text. Identifiers are validated against a strict pattern
// before interpolation; values are always returned as bind parameters and
// never appear in SQL text.
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/rowgate/rowgate/pkg/apperrors"
)

// ValidateIdentifier rejects any catalog, schema, table, or column name that
// is not a safe SQL identifier. This is the sole injection defense for
// identifiers, which SQL cannot accept as bind parameters.
func ValidateIdentifier(name string) error {
	if name == "" {
		return apperrors.Validation("invalid identifier: empty")
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return apperrors.Validationf("invalid identifier: %s", name)
			}
		default:
			return apperrors.Validationf("invalid identifier: %s", name)
		}
	}
	return nil
}

// TablePath addresses a remote table as catalog.schema.table. All three parts
// are validated at construction and the value is immutable afterwards.
type TablePath struct {
	catalog string
	schema  string
	table   string
}

// NewTablePath validates each part and builds a table path.
func NewTablePath(catalog, schema, table string) (TablePath, error) {
	if catalog == "" || schema == "" {
		return TablePath{}, apperrors.Validation("catalog and schema must be provided")
	}
	for _, part := range []string{catalog, schema, table} {
		if err := ValidateIdentifier(part); err != nil {
			return TablePath{}, err
		}
	}
	return TablePath{catalog: catalog, schema: schema, table: table}, nil
}

// Catalog returns the catalog part.
func (p TablePath) Catalog() string { return p.catalog }

// Schema returns the schema part.
func (p TablePath) Schema() string { return p.schema }

// Table returns the table part.
func (p TablePath) Table() string { return p.table }

// String returns the dotted form used in SQL text.
func (p TablePath) String() string {
	return fmt.Sprintf("%s.%s.%s", p.catalog, p.schema, p.table)
}

// SelectColumns validates a comma-separated column list for a SELECT. The
// literal "*" passes through; every other entry must be a valid identifier.
func SelectColumns(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return "*", nil
	}
	parts := strings.Split(raw, ",")
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		col := strings.TrimSpace(part)
		if err := ValidateIdentifier(col); err != nil {
			return "", err
		}
		cols = append(cols, col)
	}
	return strings.Join(cols, ", "), nil
}
