package sqlbuild

import (
	"strings"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/models"
)

// supportedOps is the closed set of filter operators.
var supportedOps = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {}, "LIKE": {}, "IN": {},
}

// BuildWhereClause turns a filter list into a parameterized WHERE clause and
// its ordered bind parameters. Conditions are joined with AND in input order;
// an empty or nil list yields an empty clause. This is the only path by which
// filter values reach SQL, so values never need escaping.
func BuildWhereClause(filters []models.FilterCondition) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(filters))
	params := make([]any, 0, len(filters))

	for _, cond := range filters {
		if err := ValidateIdentifier(cond.Column); err != nil {
			return "", nil, err
		}

		op := strings.ToUpper(strings.TrimSpace(cond.Op))
		if op == "" {
			op = "="
		}
		if _, ok := supportedOps[op]; !ok {
			return "", nil, apperrors.Validationf("unsupported operator: %s", cond.Op)
		}

		if op == "IN" {
			values, ok := cond.Value.([]any)
			if !ok || len(values) == 0 {
				return "", nil, apperrors.Validation("IN operator requires a non-empty list value")
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			parts = append(parts, cond.Column+" IN ("+placeholders+")")
			params = append(params, values...)
			continue
		}

		parts = append(parts, cond.Column+" "+op+" ?")
		params = append(params, cond.Value)
	}

	return "WHERE " + strings.Join(parts, " AND "), params, nil
}
