package driver

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

const defaultCheckTimeout = 30 * time.Second

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Connect opens a pool for d and verifies the server answers. The pool is
// closed again when the ping fails.
func Connect(ctx context.Context, d Driver, conn Connection) (*sql.DB, error) {
	db, err := d.Open(conn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database").
			WithDetail("driver", d.Name())
	}
	if conn.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conn.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout(conn))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("driver", d.Name())
	}
	return db, nil
}

// TableExists opens a connection, looks the table up in the catalog and
// releases the connection on every path. It returns false only when the
// table is confirmed absent.
func TableExists(ctx context.Context, d Driver, conn Connection, table string) (bool, error) {
	db, err := Connect(ctx, d, conn)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Get().Warn("failed to close connection after table check",
				zap.String("driver", d.Name()), zap.Error(cerr))
		}
	}()

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout(conn))
	defer cancel()
	return TableExistsOn(checkCtx, db, d.Dialect(), table)
}

// TableExistsOn checks table existence on an already open connection.
func TableExistsOn(ctx context.Context, q Querier, dialect Dialect, table string) (bool, error) {
	schema, name := SplitTableName(table)
	if name == "" {
		return false, errors.New(errors.ErrorTypeConfig, "table name is empty")
	}

	query, args := dialect.TableExistsQuery(schema, name)
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to check table existence").
			WithDetail("table", table)
	}
	return n > 0, nil
}

func checkTimeout(conn Connection) time.Duration {
	if conn.Timeout > 0 {
		return conn.Timeout
	}
	return defaultCheckTimeout
}
