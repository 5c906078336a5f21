package sqlbuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/models"
)

// auditColumnDDL is the fixed envelope appended to every created table.
var auditColumnDDL = []string{
	models.ColRecordUUID + " STRING",
	models.ColIsDeleted + " BOOLEAN",
	models.ColInsertedAt + " TIMESTAMP",
	models.ColInsertedBy + " STRING",
	models.ColUpdatedAt + " TIMESTAMP",
	models.ColUpdatedBy + " STRING",
	models.ColDeletedAt + " TIMESTAMP",
	models.ColDeletedBy + " STRING",
}

// BuildCreateTable renders CREATE TABLE IF NOT EXISTS for the declared
// columns plus the audit envelope. It never drops or alters existing tables.
func BuildCreateTable(path TablePath, schema []models.ColumnDefinition) (string, error) {
	if len(schema) == 0 {
		return "", apperrors.Validation("schema definition must declare at least one column")
	}

	defs := make([]string, 0, len(schema)+len(auditColumnDDL))
	for _, col := range schema {
		if err := ValidateIdentifier(col.Name); err != nil {
			return "", err
		}
		dataType := strings.ToUpper(col.DataType)
		if !KnownDataType(dataType) {
			return "", apperrors.Validationf("unsupported data type %q for column %s", col.DataType, col.Name)
		}
		def := col.Name + " " + dataType
		if !col.IsNullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, auditColumnDDL...)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", path, strings.Join(defs, ", ")), nil
}

// BuildInsert renders one multi-row INSERT statement with a placeholder per
// value and the flattened parameters in row-major order. Column order is the
// sorted key set of the first row; every row must supply the same columns.
func BuildInsert(path TablePath, rows []map[string]any) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, apperrors.Validation("no rows to insert")
	}

	columns := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		if err := ValidateIdentifier(name); err != nil {
			return "", nil, err
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	values := make([]string, 0, len(rows))
	params := make([]any, 0, len(rows)*len(columns))

	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, apperrors.Validationf("row %d has %d columns, expected %d", i, len(row), len(columns))
		}
		for _, col := range columns {
			v, ok := row[col]
			if !ok {
				return "", nil, apperrors.Validationf("row %d is missing column %s", i, col)
			}
			params = append(params, v)
		}
		values = append(values, rowPlaceholder)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", path, strings.Join(columns, ", "), strings.Join(values, ", "))
	return stmt, params, nil
}

// BuildSetClause renders the SET portion of an UPDATE from a column→value
// map, re-validating every column name. Columns are emitted in sorted order
// so statements are deterministic; parameters follow the same order.
func BuildSetClause(updates map[string]any) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, apperrors.Validation("updates must not be empty")
	}

	columns := make([]string, 0, len(updates))
	for name := range updates {
		if err := ValidateIdentifier(name); err != nil {
			return "", nil, err
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns))
	params := make([]any, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" = ?")
		params = append(params, updates[col])
	}
	return strings.Join(parts, ", "), params, nil
}

// Placeholders renders n comma-separated bind placeholders for IN lists.
func Placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
