package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowgate/rowgate/pkg/apperrors"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple lowercase", input: "orders"},
		{name: "mixed case", input: "OrderItems"},
		{name: "leading underscore", input: "_staging"},
		{name: "digits after first char", input: "table2024"},
		{name: "underscores throughout", input: "order_line_items"},
		{name: "empty", input: "", wantErr: true},
		{name: "leading digit", input: "2024table", wantErr: true},
		{name: "hyphen", input: "order-items", wantErr: true},
		{name: "space", input: "order items", wantErr: true},
		{name: "semicolon injection", input: "orders; DROP TABLE users", wantErr: true},
		{name: "quote", input: "orders'", wantErr: true},
		{name: "dotted path", input: "main.orders", wantErr: true},
		{name: "comment sequence", input: "orders--", wantErr: true},
		{name: "unicode letter", input: "ordrés", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewTablePath(t *testing.T) {
	t.Run("valid path", func(t *testing.T) {
		path, err := NewTablePath("main", "sales", "orders")
		require.NoError(t, err)
		assert.Equal(t, "main.sales.orders", path.String())
		assert.Equal(t, "main", path.Catalog())
		assert.Equal(t, "sales", path.Schema())
		assert.Equal(t, "orders", path.Table())
	})

	t.Run("missing catalog", func(t *testing.T) {
		_, err := NewTablePath("", "sales", "orders")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "catalog and schema must be provided")
	})

	t.Run("missing schema", func(t *testing.T) {
		_, err := NewTablePath("main", "", "orders")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "catalog and schema must be provided")
	})

	t.Run("invalid table name", func(t *testing.T) {
		_, err := NewTablePath("main", "sales", "orders; DROP TABLE users")
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("invalid catalog name", func(t *testing.T) {
		_, err := NewTablePath("main'--", "sales", "orders")
		require.Error(t, err)
	})
}

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "star", input: "*", want: "*"},
		{name: "empty defaults to star", input: "", want: "*"},
		{name: "single column", input: "id", want: "id"},
		{name: "multiple columns", input: "id,name,created", want: "id, name, created"},
		{name: "whitespace trimmed", input: " id , name ", want: "id, name"},
		{name: "injection in column", input: "id, name; DROP TABLE users", wantErr: true},
		{name: "star mixed with columns", input: "id, *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectColumns(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
