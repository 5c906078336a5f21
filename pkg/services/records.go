// Package services holds the orchestration layer between the HTTP handlers
// and the warehouse connectors: record CRUD with audit-envelope bookkeeping,
// and best-effort error logging to a warehouse table.
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/logging"
	"github.com/rowgate/rowgate/pkg/models"
	"github.com/rowgate/rowgate/pkg/sqlbuild"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// RecordService is the single orchestration point for table CRUD. Callers
// supply the resolved table path and the warehouse connector; the service
// builds parameterized SQL, injects the audit envelope, and wraps every
// connector failure as a DatabaseError. It never retries.
type RecordService struct {
	user   string
	logger *zap.Logger
	now    func() time.Time
}

// NewRecordService creates a record service acting as the given audit user.
func NewRecordService(user string, logger *zap.Logger) *RecordService {
	if user == "" {
		user = "api"
	}
	return &RecordService{user: user, logger: logger, now: time.Now}
}

// TableMetadata is the cached result of one DESCRIBE probe, scoped to a
// single request so schema changes are picked up on the next one.
type TableMetadata struct {
	columns map[string]struct{}
}

// HasColumn reports whether the probed table has the named column.
func (m *TableMetadata) HasColumn(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.columns[name]
	return ok
}

// Describe probes the table's column set. A failed probe yields empty
// metadata rather than an error: callers treat unknown tables as having no
// columns, matching the soft-delete filter's opportunistic behavior.
func (s *RecordService) Describe(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath) *TableMetadata {
	rows, err := conn.Query(ctx, "DESCRIBE "+path.String(), nil)
	if err != nil {
		s.logger.Debug("describe probe failed", zap.String("table", path.String()), zap.Error(err))
		return &TableMetadata{}
	}

	columns := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		// Dialects name the describe column differently; take any string cell.
		for _, v := range row {
			if name, ok := v.(string); ok && name != "" {
				columns[name] = struct{}{}
			}
		}
	}
	return &TableMetadata{columns: columns}
}

// Read selects rows with optional filtering and pagination. When the table
// has an is_deleted column and the caller does not filter on it, soft-deleted
// rows are excluded.
func (s *RecordService) Read(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, q models.ReadQuery) (*models.TableResponse, error) {
	cols, err := sqlbuild.SelectColumns(q.Columns)
	if err != nil {
		return nil, err
	}

	filters := q.Filters
	s.screenFilters(filters)

	if s.Describe(ctx, conn, path).HasColumn(models.ColIsDeleted) && !filtersOn(filters, models.ColIsDeleted) {
		filters = append(filters, models.FilterCondition{Column: models.ColIsDeleted, Op: "=", Value: false})
	}

	where, params, err := sqlbuild.BuildWhereClause(filters)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", cols, path)
	if where != "" {
		stmt += " " + where
	}
	stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	s.logger.Debug("executing read", zap.String("query", logging.SanitizeQuery(stmt)))

	rows, err := conn.Query(ctx, stmt, params)
	if err != nil {
		return nil, apperrors.Databasef(err, "failed to query records table %s", path)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return &models.TableResponse{Data: rows, Count: len(rows)}, nil
}

// Write validates, decorates, and inserts rows. With autoCreate the catalog,
// schema, and table are created if absent; a new table gets the declared
// columns plus the audit envelope and is never dropped or altered.
func (s *RecordService) Write(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, data []map[string]any, autoCreate bool, schemaDef []models.ColumnDefinition) (*models.TableResponse, error) {
	if autoCreate {
		if err := s.ensureTarget(ctx, conn, path, schemaDef); err != nil {
			return nil, err
		}
	}

	if len(schemaDef) > 0 {
		if err := sqlbuild.ValidateRecords(data, schemaDef); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC().Format(time.RFC3339)
	rows := make([]map[string]any, 0, len(data))
	for _, r := range data {
		rec := make(map[string]any, len(r)+len(models.AuditColumns))
		for k, v := range r {
			rec[k] = v
		}
		setDefault(rec, models.ColRecordUUID, func() any { return uuid.NewString() })
		setDefault(rec, models.ColInsertedAt, func() any { return now })
		setDefault(rec, models.ColInsertedBy, func() any { return s.user })
		setDefault(rec, models.ColUpdatedAt, func() any { return now })
		setDefault(rec, models.ColUpdatedBy, func() any { return s.user })
		setDefault(rec, models.ColIsDeleted, func() any { return false })
		setDefault(rec, models.ColDeletedAt, func() any { return nil })
		setDefault(rec, models.ColDeletedBy, func() any { return nil })
		rows = append(rows, rec)
	}

	inserted, err := conn.Insert(ctx, path, rows)
	if err != nil {
		return nil, apperrors.Databasef(err, "failed to insert into records table %s", path)
	}
	if inserted < 0 {
		inserted = len(rows)
	}
	return &models.TableResponse{Data: rows, Count: inserted, Total: &inserted}, nil
}

// Update applies one of the four mutation strategies. Key-based strategies
// pre-check existence and report missing keys as not_found without failing;
// the filter strategy reports count -1 because its reach is unbounded.
func (s *RecordService) Update(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, strategy models.MutationStrategy, updates map[string]any) (*models.TableResponse, error) {
	now := s.now().UTC().Format(time.RFC3339)

	merge := func(base map[string]any) map[string]any {
		merged := make(map[string]any, len(base)+2)
		for k, v := range base {
			merged[k] = v
		}
		merged[models.ColUpdatedAt] = now
		merged[models.ColUpdatedBy] = s.user
		return merged
	}

	var (
		count    int
		notFound []any
	)

	switch strategy.Kind {
	case models.StrategySingleKey:
		s.screenUpdates(updates)
		exists, err := s.keyExists(ctx, conn, path, strategy.KeyColumn, strategy.KeyValue)
		if err != nil {
			return nil, err
		}
		if !exists {
			notFound = append(notFound, strategy.KeyValue)
			break
		}
		setClause, params, err := sqlbuild.BuildSetClause(merge(updates))
		if err != nil {
			return nil, err
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", path, setClause, strategy.KeyColumn)
		if _, err := conn.Query(ctx, stmt, append(params, strategy.KeyValue)); err != nil {
			return nil, apperrors.Databasef(err, "failed to update records table %s", path)
		}
		count = 1

	case models.StrategyMultiKey:
		s.screenUpdates(updates)
		existing, missing, err := s.findKeys(ctx, conn, path, strategy.KeyColumn, strategy.KeyValues)
		if err != nil {
			return nil, err
		}
		notFound = missing
		if existing == 0 {
			break
		}
		setClause, params, err := sqlbuild.BuildSetClause(merge(updates))
		if err != nil {
			return nil, err
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)",
			path, setClause, strategy.KeyColumn, sqlbuild.Placeholders(len(strategy.KeyValues)))
		if _, err := conn.Query(ctx, stmt, append(params, strategy.KeyValues...)); err != nil {
			return nil, apperrors.Databasef(err, "failed to update records table %s", path)
		}
		count = existing

	case models.StrategyBulk:
		for _, item := range strategy.Bulk {
			s.screenUpdates(item.Updates)
			exists, err := s.keyExists(ctx, conn, path, strategy.KeyColumn, item.KeyValue)
			if err != nil {
				return nil, err
			}
			if !exists {
				notFound = append(notFound, item.KeyValue)
				continue
			}
			setClause, params, err := sqlbuild.BuildSetClause(merge(item.Updates))
			if err != nil {
				return nil, err
			}
			stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", path, setClause, strategy.KeyColumn)
			if _, err := conn.Query(ctx, stmt, append(params, item.KeyValue)); err != nil {
				return nil, apperrors.Databasef(err, "failed to update records table %s", path)
			}
			count++
		}

	case models.StrategyFilter:
		s.screenUpdates(updates)
		s.screenFilters(strategy.Filters)
		if len(strategy.Filters) == 0 {
			return nil, apperrors.Validation("filters must not be empty")
		}
		setClause, params, err := sqlbuild.BuildSetClause(merge(updates))
		if err != nil {
			return nil, err
		}
		where, filterParams, err := sqlbuild.BuildWhereClause(strategy.Filters)
		if err != nil {
			return nil, err
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s %s", path, setClause, where)
		if _, err := conn.Query(ctx, stmt, append(params, filterParams...)); err != nil {
			return nil, apperrors.Databasef(err, "failed to update records table %s", path)
		}
		count = -1
	}

	result := map[string]any{
		models.ColUpdatedAt: now,
		models.ColUpdatedBy: s.user,
	}
	if len(notFound) > 0 {
		result["not_found"] = notFound
	}
	return &models.TableResponse{Data: []map[string]any{result}, Count: count}, nil
}

// Delete removes rows by one of three strategies, either softly (marking the
// audit envelope) or hard (DELETE). Soft delete requires the table to carry
// an is_deleted column; absence is a hard error rather than a silent hard
// delete.
func (s *RecordService) Delete(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, strategy models.MutationStrategy, soft bool) (*models.TableResponse, error) {
	if soft && !s.Describe(ctx, conn, path).HasColumn(models.ColIsDeleted) {
		return nil, apperrors.Database(fmt.Sprintf(
			"soft delete requested but table %s does not have an 'is_deleted' column; use soft=false for hard delete or add the column",
			path), nil)
	}

	now := s.now().UTC().Format(time.RFC3339)

	softSet := fmt.Sprintf("%s = true, %s = ?, %s = ?, %s = ?, %s = ?",
		models.ColIsDeleted, models.ColDeletedAt, models.ColDeletedBy, models.ColUpdatedAt, models.ColUpdatedBy)
	softParams := []any{now, s.user, now, s.user}

	var (
		count    int
		notFound []any
	)

	switch strategy.Kind {
	case models.StrategySingleKey:
		exists, err := s.keyExists(ctx, conn, path, strategy.KeyColumn, strategy.KeyValue)
		if err != nil {
			return nil, err
		}
		if !exists {
			notFound = append(notFound, strategy.KeyValue)
			break
		}
		var stmt string
		var params []any
		if soft {
			stmt = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", path, softSet, strategy.KeyColumn)
			params = append(append([]any{}, softParams...), strategy.KeyValue)
		} else {
			stmt = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", path, strategy.KeyColumn)
			params = []any{strategy.KeyValue}
		}
		if _, err := conn.Query(ctx, stmt, params); err != nil {
			return nil, apperrors.Databasef(err, "failed to delete from records table %s", path)
		}
		count = 1

	case models.StrategyMultiKey:
		existing, missing, err := s.findKeys(ctx, conn, path, strategy.KeyColumn, strategy.KeyValues)
		if err != nil {
			return nil, err
		}
		notFound = missing
		placeholders := sqlbuild.Placeholders(len(strategy.KeyValues))
		var stmt string
		var params []any
		if soft {
			stmt = fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)", path, softSet, strategy.KeyColumn, placeholders)
			params = append(append([]any{}, softParams...), strategy.KeyValues...)
		} else {
			stmt = fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", path, strategy.KeyColumn, placeholders)
			params = append([]any{}, strategy.KeyValues...)
		}
		if _, err := conn.Query(ctx, stmt, params); err != nil {
			return nil, apperrors.Databasef(err, "failed to delete from records table %s", path)
		}
		count = existing

	case models.StrategyFilter:
		s.screenFilters(strategy.Filters)
		if len(strategy.Filters) == 0 {
			return nil, apperrors.Validation("filters must not be empty")
		}
		where, filterParams, err := sqlbuild.BuildWhereClause(strategy.Filters)
		if err != nil {
			return nil, err
		}
		var stmt string
		var params []any
		if soft {
			stmt = fmt.Sprintf("UPDATE %s SET %s %s", path, softSet, where)
			params = append(append([]any{}, softParams...), filterParams...)
		} else {
			stmt = fmt.Sprintf("DELETE FROM %s %s", path, where)
			params = filterParams
		}
		if _, err := conn.Query(ctx, stmt, params); err != nil {
			return nil, apperrors.Databasef(err, "failed to delete from records table %s", path)
		}
		count = -1
	}

	data := []map[string]any{}
	if soft {
		data = append(data, map[string]any{models.ColIsDeleted: true})
	}
	if len(notFound) > 0 {
		data = append(data, map[string]any{"not_found": notFound})
	}
	return &models.TableResponse{Data: data, Count: count}, nil
}

// ensureTarget creates catalog, schema, and table in that order when absent.
// Existence is probed first so the CREATE statements only run when needed.
func (s *RecordService) ensureTarget(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, schemaDef []models.ColumnDefinition) error {
	if !s.probeOK(ctx, conn, fmt.Sprintf("SHOW CATALOGS LIKE '%s'", path.Catalog())) {
		if _, err := conn.Query(ctx, "CREATE CATALOG IF NOT EXISTS "+path.Catalog(), nil); err != nil {
			return apperrors.Databasef(err, "failed to auto-create catalog %s", path.Catalog())
		}
	}

	if !s.probeOK(ctx, conn, fmt.Sprintf("SHOW SCHEMAS IN %s LIKE '%s'", path.Catalog(), path.Schema())) {
		stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", path.Catalog(), path.Schema())
		if _, err := conn.Query(ctx, stmt, nil); err != nil {
			return apperrors.Databasef(err, "failed to auto-create schema %s.%s", path.Catalog(), path.Schema())
		}
	}

	if s.probeOK(ctx, conn, "DESCRIBE TABLE "+path.String()) {
		return nil
	}
	if len(schemaDef) == 0 {
		return apperrors.Database("schema_definition is required when creating a new table", nil)
	}
	ddl, err := sqlbuild.BuildCreateTable(path, schemaDef)
	if err != nil {
		return err
	}
	if _, err := conn.Query(ctx, ddl, nil); err != nil {
		return apperrors.Databasef(err, "failed to auto-create table %s", path)
	}
	s.logger.Info("created table", zap.String("table", path.String()))
	return nil
}

func (s *RecordService) probeOK(ctx context.Context, conn warehouse.Connector, stmt string) bool {
	_, err := conn.Query(ctx, stmt, nil)
	return err == nil
}

// keyExists runs the pre-update existence check for a single key.
func (s *RecordService) keyExists(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, keyColumn string, keyValue any) (bool, error) {
	if err := sqlbuild.ValidateIdentifier(keyColumn); err != nil {
		return false, err
	}
	stmt := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = ?", path, keyColumn)
	rows, err := conn.Query(ctx, stmt, []any{keyValue})
	if err != nil {
		return false, apperrors.Databasef(err, "failed to check record existence in %s", path)
	}
	if len(rows) == 0 {
		return false, nil
	}
	return toInt64(rows[0]["count"]) > 0, nil
}

// findKeys returns how many of the requested keys exist and which are
// missing, preserving the request order of the missing ones.
func (s *RecordService) findKeys(ctx context.Context, conn warehouse.Connector, path sqlbuild.TablePath, keyColumn string, keyValues []any) (int, []any, error) {
	if err := sqlbuild.ValidateIdentifier(keyColumn); err != nil {
		return 0, nil, err
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		keyColumn, path, keyColumn, sqlbuild.Placeholders(len(keyValues)))
	rows, err := conn.Query(ctx, stmt, keyValues)
	if err != nil {
		return 0, nil, apperrors.Databasef(err, "failed to check record existence in %s", path)
	}

	found := make(map[any]struct{}, len(rows))
	for _, row := range rows {
		found[normalizeKey(row[keyColumn])] = struct{}{}
	}

	var missing []any
	for _, kv := range keyValues {
		if _, ok := found[normalizeKey(kv)]; !ok {
			missing = append(missing, kv)
		}
	}
	return len(found), missing, nil
}

func (s *RecordService) screenFilters(filters []models.FilterCondition) {
	for _, f := range filters {
		values := []any{f.Value}
		if list, ok := f.Value.([]any); ok {
			values = list
		}
		for _, v := range values {
			if finding := sqlbuild.ScreenValue(f.Column, v); finding != nil {
				s.logInjection(finding)
			}
		}
	}
}

func (s *RecordService) screenUpdates(updates map[string]any) {
	for _, finding := range sqlbuild.ScreenUpdates(updates) {
		s.logInjection(finding)
	}
}

// logInjection records a libinjection match as a security event. The value is
// still executed as a bind parameter, so this is observability, not a block.
func (s *RecordService) logInjection(f *sqlbuild.InjectionFinding) {
	s.logger.Warn("SQL injection pattern in bind value",
		zap.String("column", f.Column),
		zap.String("fingerprint", f.Fingerprint),
	)
}

func setDefault(rec map[string]any, key string, value func() any) {
	if _, ok := rec[key]; !ok {
		rec[key] = value()
	}
}

// filtersOn reports whether the caller already filters on the named column.
func filtersOn(filters []models.FilterCondition, column string) bool {
	for _, f := range filters {
		if f.Column == column {
			return true
		}
	}
	return false
}

// normalizeKey folds driver-specific scalar representations so values read
// back from the warehouse compare equal to values supplied in JSON requests.
func normalizeKey(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	default:
		return v
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
