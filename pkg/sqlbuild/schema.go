package sqlbuild

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/models"
)

// Type categories used for structural validation. This is deliberately a
// coarse check on broad kinds, not full SQL type checking.
var (
	integerTypes = map[string]struct{}{"BIGINT": {}, "INT": {}, "INTEGER": {}, "SMALLINT": {}, "TINYINT": {}}
	floatTypes   = map[string]struct{}{"DOUBLE": {}, "FLOAT": {}, "DECIMAL": {}}
	stringTypes  = map[string]struct{}{"STRING": {}, "VARCHAR": {}, "CHAR": {}}
	timeTypes    = map[string]struct{}{"DATE": {}, "TIMESTAMP": {}}
	otherTypes   = map[string]struct{}{"BOOLEAN": {}, "BINARY": {}, "ARRAY": {}, "MAP": {}, "STRUCT": {}}
)

// KnownDataType reports whether t names a supported column type.
func KnownDataType(t string) bool {
	u := strings.ToUpper(t)
	for _, set := range []map[string]struct{}{integerTypes, floatTypes, stringTypes, timeTypes, otherTypes} {
		if _, ok := set[u]; ok {
			return true
		}
	}
	return false
}

// expectedSchema renders the declared columns, in declared order, for error
// details so API consumers can see what the table expects.
func expectedSchema(schema []models.ColumnDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(schema))
	for _, col := range schema {
		out = append(out, map[string]any{
			"name":     col.Name,
			"type":     strings.ToUpper(col.DataType),
			"nullable": col.IsNullable(),
		})
	}
	return out
}

// ValidateRecords checks each record against the declared schema before
// insertion: required columns present, no unknown columns (the audit envelope
// is exempt), and present non-null values matching their column's declared
// category. Validation is fail-fast per record; the first violation is
// reported with the record index and the full expected schema.
func ValidateRecords(records []map[string]any, schema []models.ColumnDefinition) error {
	declared := make(map[string]string, len(schema))
	var required []string
	for _, col := range schema {
		declared[col.Name] = strings.ToUpper(col.DataType)
		if !col.IsNullable() {
			required = append(required, col.Name)
		}
	}

	fail := func(msg string, idx int) error {
		return apperrors.SchemaValidation("schema validation failed: "+msg, map[string]any{
			"record_index":    idx,
			"expected_schema": expectedSchema(schema),
		})
	}

	for idx, record := range records {
		var missing []string
		for _, name := range required {
			if _, ok := record[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fail(fmt.Sprintf("record %d missing required columns: %s", idx, strings.Join(missing, ", ")), idx)
		}

		var unknown []string
		for name := range record {
			if _, ok := declared[name]; ok {
				continue
			}
			if models.IsAuditColumn(name) {
				continue
			}
			unknown = append(unknown, name)
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return fail(fmt.Sprintf("record %d contains unknown columns: %s", idx, strings.Join(unknown, ", ")), idx)
		}

		for name, value := range record {
			dataType, ok := declared[name]
			if !ok || value == nil {
				continue
			}
			if err := checkValueKind(name, value, dataType, idx); err != nil {
				return fail(err.Error(), idx)
			}
		}
	}
	return nil
}

// checkValueKind verifies one value against its column's declared category.
func checkValueKind(column string, value any, dataType string, idx int) error {
	mismatch := func(expected string) error {
		return fmt.Errorf("record %d: column %q expects %s, got %s", idx, column, expected, kindName(value))
	}

	if _, ok := integerTypes[dataType]; ok {
		if !isIntegerValue(value) {
			return mismatch("integer")
		}
		return nil
	}
	if _, ok := floatTypes[dataType]; ok {
		if !isIntegerValue(value) && !isFloatValue(value) {
			return mismatch("numeric")
		}
		return nil
	}
	if _, ok := stringTypes[dataType]; ok {
		if _, ok := value.(string); !ok {
			return mismatch("string")
		}
		return nil
	}
	if dataType == "BOOLEAN" {
		if _, ok := value.(bool); !ok {
			return mismatch("boolean")
		}
		return nil
	}
	if _, ok := timeTypes[dataType]; ok {
		switch value.(type) {
		case string, time.Time:
			return nil
		}
		return mismatch("date/timestamp string")
	}
	// BINARY, ARRAY, MAP, STRUCT: structural check only, any value accepted.
	return nil
}

// isIntegerValue accepts native integer types plus JSON numbers that carry an
// integral value, since encoding/json decodes every number as float64.
func isIntegerValue(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func isFloatValue(v any) bool {
	switch n := v.(type) {
	case float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return false
}

func kindName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64, json.Number:
		return "number"
	case time.Time:
		return "timestamp"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
