package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRequestStrategy(t *testing.T) {
	updates := map[string]any{"status": "done"}

	t.Run("single key", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyColumn: "id", KeyValue: 7, Updates: updates}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategySingleKey, s.Kind)
		assert.Equal(t, "id", s.KeyColumn)
		assert.Equal(t, 7, s.KeyValue)
	})

	t.Run("multi key", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyColumn: "id", KeyValues: []any{1, 2}, Updates: updates}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategyMultiKey, s.Kind)
		assert.Equal(t, []any{1, 2}, s.KeyValues)
	})

	t.Run("bulk carries per-record updates", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyColumn: "id", BulkUpdates: []BulkUpdate{
			{KeyValue: 1, Updates: map[string]any{"status": "a"}},
			{KeyValue: 2, Updates: map[string]any{"status": "b"}},
		}}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategyBulk, s.Kind)
		assert.Len(t, s.Bulk, 2)
	})

	t.Run("filter", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", Filters: []FilterCondition{{Column: "status", Value: "open"}}, Updates: updates}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategyFilter, s.Kind)
	})

	t.Run("no strategy populated", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", Updates: updates}
		_, err := req.Strategy()
		require.Error(t, err)
	})

	t.Run("two strategies populated", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyColumn: "id", KeyValue: 7,
			Filters: []FilterCondition{{Column: "status", Value: "open"}}, Updates: updates}
		_, err := req.Strategy()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("key value without key column", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyValue: 7, Updates: updates}
		_, err := req.Strategy()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key_column")
	})

	t.Run("single key without updates", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", KeyColumn: "id", KeyValue: 7}
		_, err := req.Strategy()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "updates")
	})

	t.Run("filter without updates", func(t *testing.T) {
		req := &UpdateRequest{Table: "orders", Filters: []FilterCondition{{Column: "a", Value: 1}}}
		_, err := req.Strategy()
		require.Error(t, err)
	})
}

func TestDeleteRequestStrategy(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		req := &DeleteRequest{Table: "orders", KeyColumn: "id", KeyValue: 7}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategySingleKey, s.Kind)
	})

	t.Run("filter", func(t *testing.T) {
		req := &DeleteRequest{Table: "orders", Filters: []FilterCondition{{Column: "status", Value: "stale"}}}
		s, err := req.Strategy()
		require.NoError(t, err)
		assert.Equal(t, StrategyFilter, s.Kind)
	})

	t.Run("no strategy populated", func(t *testing.T) {
		req := &DeleteRequest{Table: "orders"}
		_, err := req.Strategy()
		require.Error(t, err)
	})

	t.Run("two strategies populated", func(t *testing.T) {
		req := &DeleteRequest{Table: "orders", KeyColumn: "id", KeyValue: 7, KeyValues: []any{1}}
		_, err := req.Strategy()
		require.Error(t, err)
	})
}

func TestDeleteRequestIsSoft(t *testing.T) {
	assert.True(t, (&DeleteRequest{}).IsSoft())
	hard := false
	assert.False(t, (&DeleteRequest{Soft: &hard}).IsSoft())
	soft := true
	assert.True(t, (&DeleteRequest{Soft: &soft}).IsSoft())
}

func TestColumnDefinitionIsNullable(t *testing.T) {
	assert.True(t, ColumnDefinition{Name: "a", DataType: "STRING"}.IsNullable())
	no := false
	assert.False(t, ColumnDefinition{Name: "a", DataType: "STRING", Nullable: &no}.IsNullable())
}

func TestIsAuditColumn(t *testing.T) {
	assert.True(t, IsAuditColumn("record_uuid"))
	assert.True(t, IsAuditColumn("deleted_by"))
	assert.False(t, IsAuditColumn("id"))
}
