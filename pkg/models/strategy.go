package models

import "github.com/rowgate/rowgate/pkg/apperrors"

// StrategyKind identifies how an update or delete selects its target rows.
type StrategyKind int

const (
	// StrategySingleKey targets one row by key column and value.
	StrategySingleKey StrategyKind = iota
	// StrategyMultiKey targets several rows by key column and a value list,
	// applying identical changes to all of them.
	StrategyMultiKey
	// StrategyBulk applies an independent update per key value.
	StrategyBulk
	// StrategyFilter targets whatever rows match a filter list.
	StrategyFilter
)

// MutationStrategy is the resolved form of an update or delete request.
// Exactly one strategy is populated; resolution happens once at the API
// boundary so the service layer never inspects optional request fields.
type MutationStrategy struct {
	Kind      StrategyKind
	KeyColumn string
	KeyValue  any
	KeyValues []any
	Bulk      []BulkUpdate
	Filters   []FilterCondition
}

var (
	errNoStrategy       = apperrors.Validation("one of key_value, key_values, bulk_updates, or filters must be provided")
	errManyStrategies   = apperrors.Validation("key_value, key_values, bulk_updates, and filters are mutually exclusive")
	errNoDeleteStrategy = apperrors.Validation("one of key_value, key_values, or filters must be provided")
	errKeyColumn        = apperrors.Validation("key_column is required for key-based operations")
	errNoUpdates        = apperrors.Validation("updates must not be empty")
)

// Strategy resolves the update request into exactly one mutation strategy.
func (r *UpdateRequest) Strategy() (MutationStrategy, error) {
	populated := 0
	if r.KeyValue != nil {
		populated++
	}
	if r.KeyValues != nil {
		populated++
	}
	if r.BulkUpdates != nil {
		populated++
	}
	if r.Filters != nil {
		populated++
	}
	switch {
	case populated == 0:
		return MutationStrategy{}, errNoStrategy
	case populated > 1:
		return MutationStrategy{}, errManyStrategies
	}

	switch {
	case r.KeyValue != nil:
		if r.KeyColumn == "" {
			return MutationStrategy{}, errKeyColumn
		}
		if len(r.Updates) == 0 {
			return MutationStrategy{}, errNoUpdates
		}
		return MutationStrategy{Kind: StrategySingleKey, KeyColumn: r.KeyColumn, KeyValue: r.KeyValue}, nil
	case r.KeyValues != nil:
		if r.KeyColumn == "" {
			return MutationStrategy{}, errKeyColumn
		}
		if len(r.Updates) == 0 {
			return MutationStrategy{}, errNoUpdates
		}
		return MutationStrategy{Kind: StrategyMultiKey, KeyColumn: r.KeyColumn, KeyValues: r.KeyValues}, nil
	case r.BulkUpdates != nil:
		if r.KeyColumn == "" {
			return MutationStrategy{}, errKeyColumn
		}
		return MutationStrategy{Kind: StrategyBulk, KeyColumn: r.KeyColumn, Bulk: r.BulkUpdates}, nil
	default:
		if len(r.Updates) == 0 {
			return MutationStrategy{}, errNoUpdates
		}
		return MutationStrategy{Kind: StrategyFilter, Filters: r.Filters}, nil
	}
}

// Strategy resolves the delete request into exactly one mutation strategy.
// Deletes have no per-record bulk variant.
func (r *DeleteRequest) Strategy() (MutationStrategy, error) {
	populated := 0
	if r.KeyValue != nil {
		populated++
	}
	if r.KeyValues != nil {
		populated++
	}
	if r.Filters != nil {
		populated++
	}
	switch {
	case populated == 0:
		return MutationStrategy{}, errNoDeleteStrategy
	case populated > 1:
		return MutationStrategy{}, errManyStrategies
	}

	switch {
	case r.KeyValue != nil:
		if r.KeyColumn == "" {
			return MutationStrategy{}, errKeyColumn
		}
		return MutationStrategy{Kind: StrategySingleKey, KeyColumn: r.KeyColumn, KeyValue: r.KeyValue}, nil
	case r.KeyValues != nil:
		if r.KeyColumn == "" {
			return MutationStrategy{}, errKeyColumn
		}
		return MutationStrategy{Kind: StrategyMultiKey, KeyColumn: r.KeyColumn, KeyValues: r.KeyValues}, nil
	default:
		return MutationStrategy{Kind: StrategyFilter, Filters: r.Filters}, nil
	}
}
