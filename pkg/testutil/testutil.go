// Package testutil provides fixtures shared by the hydrator tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"

	_ "modernc.org/sqlite" // sqlite database/sql driver
)

// UseTestLogger routes the global logger to the test output until the test ends.
func UseTestLogger(t *testing.T) {
	t.Helper()
	restore := logger.Replace(zaptest.NewLogger(t))
	t.Cleanup(restore)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// OrdersDB creates a sqlite database file holding an orders table with ids
// 1..rows and returns its path. Customer is mixed case on purpose.
//
//	CREATE TABLE orders (id INTEGER PRIMARY KEY, Customer TEXT, total REAL, placed_at TEXT)
func OrdersDB(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, Customer TEXT, total REAL, placed_at TEXT)`)
	require.NoError(t, err)
	for i := 1; i <= rows; i++ {
		_, err = db.Exec(`INSERT INTO orders (id, Customer, total, placed_at) VALUES (?, ?, ?, ?)`,
			i, fmt.Sprintf("customer-%d", i), float64(i)*1.5, fmt.Sprintf("2024-01-%02d", i))
		require.NoError(t, err)
	}
	return path
}

// FileBucket returns a fresh directory and the file:// bucket URL for it.
func FileBucket(t *testing.T) (dir, url string) {
	t.Helper()
	dir = t.TempDir()
	return dir, "file://" + filepath.ToSlash(dir)
}

// StreamOf returns a closed record stream holding rows, followed by streamErr
// when it is not nil.
func StreamOf(source string, rows []map[string]interface{}, streamErr error) *core.RecordStream {
	records := make(chan *pool.Record, len(rows))
	errs := make(chan error, 1)
	for i, row := range rows {
		r := pool.NewRecord(source, i)
		for k, v := range row {
			r.SetData(k, v)
		}
		records <- r
	}
	close(records)
	if streamErr != nil {
		errs <- streamErr
	}
	close(errs)
	return &core.RecordStream{Records: records, Errors: errs}
}
