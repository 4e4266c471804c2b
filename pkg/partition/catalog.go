package partition

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

// DefaultCatalogTable is used when no catalog table is configured.
const DefaultCatalogTable = "hydrator_partitions"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Placeholders renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholders interface {
	Placeholder(n int) string
}

// CatalogStore is a KeyStore kept in a database table. The primary key on
// the partition key makes registration atomic across processes.
type CatalogStore struct {
	db      *sql.DB
	dialect Placeholders
	table   string
	logger  *zap.Logger
}

// NewCatalogStore creates a store over table, which must be a plain or schema-qualified identifier.
func NewCatalogStore(db *sql.DB, dialect Placeholders, table string) (*CatalogStore, error) {
	if table == "" {
		table = DefaultCatalogTable
	}
	if !identPattern.MatchString(table) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid catalog table name %q", table)
	}
	return &CatalogStore{
		db:      db,
		dialect: dialect,
		table:   table,
		logger:  logger.Get().With(zap.String("component", "partition_catalog"), zap.String("table", table)),
	}, nil
}

// EnsureTable creates the catalog table when it does not exist.
func (s *CatalogStore) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	partition_key VARCHAR(512) NOT NULL PRIMARY KEY,
	partition_time BIGINT NOT NULL,
	created_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create partition catalog table")
	}
	return nil
}

// Add implements KeyStore. An insert that fails while the key is present is
// reported as not added; any other failure is returned.
func (s *CatalogStore) Add(ctx context.Context, key Key) (bool, error) {
	insert := fmt.Sprintf("INSERT INTO %s (partition_key, partition_time, created_at) VALUES (%s, %s, %s)",
		s.table, s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	_, insertErr := s.db.ExecContext(ctx, insert, key.FullPath, key.Time, time.Now().UnixMilli())
	if insertErr == nil {
		return true, nil
	}

	exists, err := s.Exists(ctx, key.FullPath)
	if err != nil {
		return false, errors.Wrap(insertErr, errors.ErrorTypeConnection, "failed to insert partition key")
	}
	if exists {
		s.logger.Debug("partition key already registered", zap.String("key", key.FullPath))
		return false, nil
	}
	return false, errors.Wrap(insertErr, errors.ErrorTypeConnection, "failed to insert partition key")
}

// Exists reports whether key is registered.
func (s *CatalogStore) Exists(ctx context.Context, key string) (bool, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE partition_key = %s", s.table, s.dialect.Placeholder(1))
	var n int64
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&n); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to look up partition key")
	}
	return n > 0, nil
}

// List returns registered keys with partition times in [from, to), ordered by time.
func (s *CatalogStore) List(ctx context.Context, from, to int64) ([]Key, error) {
	q := fmt.Sprintf(
		"SELECT partition_key, partition_time FROM %s WHERE partition_time >= %s AND partition_time < %s ORDER BY partition_time",
		s.table, s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list partitions")
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.FullPath, &k.Time); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to scan partition")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list partitions")
	}
	return keys, nil
}
