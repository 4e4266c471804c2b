package database

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/fieldcase"
	"github.com/ThalesGroup/hydrator-plugins/pkg/split"
)

// emptyCondition selects no rows, so the import query only yields its columns.
const emptyCondition = "(1 = 0)"

// Discover returns the schema of the import query. Field names follow the
// column case policy.
func (s *Source) Discover(ctx context.Context) (*core.Schema, error) {
	db, _, err := s.prepared()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.schema != nil {
		schema := s.schema
		s.mu.Unlock()
		return schema, nil
	}
	query := split.Substitute(s.importQuery, emptyCondition)
	s.mu.Unlock()

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := db.QueryContext(qctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to discover schema").
			WithDetail("query", query)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read column types")
	}

	columns := make([]string, len(types))
	for i, ct := range types {
		columns[i] = ct.Name()
	}
	names, err := fieldcase.Names(columns, s.fieldCase)
	if err != nil {
		return nil, err
	}

	schema := &core.Schema{Name: s.cfg.Name, Fields: make([]core.Field, len(types))}
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		schema.Fields[i] = core.Field{
			Name:         names[i],
			Type:         fieldType(ct),
			Nullable:     nullable || !ok,
			DatabaseType: ct.DatabaseTypeName(),
		}
	}

	s.mu.Lock()
	s.schema = schema
	s.mu.Unlock()

	s.logger.Debug("schema discovered", zap.Strings("fields", schema.FieldNames()))
	return schema, nil
}

// fieldType maps a driver type name onto a logical field type. Unknown
// types are read as strings.
func fieldType(ct *sql.ColumnType) core.FieldType {
	name := strings.ToUpper(ct.DatabaseTypeName())
	switch {
	case name == "":
		return scanFieldType(ct)
	case strings.Contains(name, "BOOL"), name == "BIT":
		return core.FieldTypeBool
	case strings.Contains(name, "INT"), name == "SERIAL", name == "BIGSERIAL":
		return core.FieldTypeInt
	case strings.Contains(name, "DEC"), strings.Contains(name, "NUMERIC"),
		strings.HasPrefix(name, "NUMBER"), strings.Contains(name, "MONEY"):
		return core.FieldTypeDecimal
	case strings.Contains(name, "FLOAT"), strings.Contains(name, "DOUBLE"), name == "REAL":
		return core.FieldTypeFloat
	case strings.Contains(name, "TIMESTAMP"), strings.Contains(name, "DATETIME"):
		return core.FieldTypeTimestamp
	case name == "DATE":
		return core.FieldTypeDate
	case strings.Contains(name, "BLOB"), strings.Contains(name, "BINARY"), name == "BYTEA":
		return core.FieldTypeBinary
	}
	return core.FieldTypeString
}

func scanFieldType(ct *sql.ColumnType) core.FieldType {
	t := ct.ScanType()
	if t == nil {
		return core.FieldTypeString
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return core.FieldTypeInt
	case reflect.Float32, reflect.Float64:
		return core.FieldTypeFloat
	case reflect.Bool:
		return core.FieldTypeBool
	}
	return core.FieldTypeString
}
