package database

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/sqlite"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/testutil"
)

func newConfig(path string) *config.DBSourceConfig {
	cfg := config.NewDBSourceConfig("orders-source")
	cfg.JDBCPluginName = "sqlite"
	cfg.ConnectionString = path
	cfg.TableName = "orders"
	cfg.ImportQuery = "SELECT id, Customer, total FROM orders WHERE $CONDITIONS"
	cfg.BoundingQuery = "SELECT MIN(id), MAX(id) FROM orders"
	cfg.SplitBy = "id"
	n := 3
	cfg.NumSplits = &n
	cfg.Performance.Workers = 2
	cfg.Performance.BufferSize = 4
	return cfg
}

func drain(t *testing.T, stream *core.RecordStream) ([]map[string]interface{}, error) {
	t.Helper()
	var out []map[string]interface{}
	for r := range stream.Records {
		data := make(map[string]interface{}, len(r.Data))
		for k, v := range r.Data {
			data[k] = v
		}
		data["_split"] = r.Metadata.Split
		out = append(out, data)
		r.Release()
	}
	return out, <-stream.Errors
}

func TestReadAllSplits(t *testing.T) {
	ctx := context.Background()
	src, err := New(newConfig(testutil.OrdersDB(t, 10)))
	require.NoError(t, err)
	defer src.Close(ctx)

	require.NoError(t, src.Prepare(ctx, time.Now()))

	tasks := src.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "SELECT id, Customer, total FROM orders WHERE (id <= 4)", tasks[0].Query)
	assert.Equal(t, "SELECT id, Customer, total FROM orders WHERE (id >= 8)", tasks[2].Query)

	stream, err := src.Read(ctx)
	require.NoError(t, err)
	records, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, records, 10)

	var ids []int
	for _, r := range records {
		ids = append(ids, int(r["id"].(int64)))
		assert.IsType(t, "", r["Customer"])
	}
	sort.Ints(ids)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids)

	m := src.Metrics()
	assert.Equal(t, float64(10), m["records_read"])
	assert.Equal(t, float64(3), m["splits_completed"])
}

func TestDiscoverAppliesCase(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(testutil.OrdersDB(t, 2))
	cfg.ColumnNameCase = "lower"

	src, err := New(cfg)
	require.NoError(t, err)
	defer src.Close(ctx)
	require.NoError(t, src.Prepare(ctx, time.Now()))

	schema, err := src.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer", "total"}, schema.FieldNames())

	id, ok := schema.Field("id")
	require.True(t, ok)
	assert.Equal(t, core.FieldTypeInt, id.Type)
	total, _ := schema.Field("total")
	assert.Equal(t, core.FieldTypeFloat, total.Type)
	customer, _ := schema.Field("customer")
	assert.Equal(t, core.FieldTypeString, customer.Type)

	stream, err := src.Read(ctx)
	require.NoError(t, err)
	records, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, records[0], "customer")
	assert.NotContains(t, records[0], "Customer")
}

func TestSingleSplitWithMacro(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(testutil.OrdersDB(t, 5))
	one := 1
	cfg.NumSplits = &one
	cfg.SplitBy = ""
	cfg.BoundingQuery = ""
	cfg.EnableAutoCommit = true
	cfg.ImportQuery = "SELECT id FROM orders WHERE placed_at < '${logicalStartTime(yyyy-MM-dd,1d)}'"

	src, err := New(cfg)
	require.NoError(t, err)
	defer src.Close(ctx)

	logical := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, src.Prepare(ctx, logical))

	tasks := src.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "SELECT id FROM orders WHERE placed_at < '2024-01-04'", tasks[0].Query)

	stream, err := src.Read(ctx)
	require.NoError(t, err)
	records, err := drain(t, stream)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestNullSplitTask(t *testing.T) {
	ctx := context.Background()
	path := testutil.OrdersDB(t, 4)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders (id, Customer, total) VALUES (100, NULL, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := newConfig(path)
	cfg.SplitBy = "total"
	cfg.BoundingQuery = "SELECT MIN(total), MAX(total) FROM orders"
	cfg.IncludeNullSplit = true

	src, err := New(cfg)
	require.NoError(t, err)
	defer src.Close(ctx)
	require.NoError(t, src.Prepare(ctx, time.Now()))
	require.Len(t, src.Tasks(), 4)

	stream, err := src.Read(ctx)
	require.NoError(t, err)
	records, err := drain(t, stream)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestPrepareErrors(t *testing.T) {
	ctx := context.Background()
	path := testutil.OrdersDB(t, 1)

	tests := []struct {
		name     string
		mutate   func(*config.DBSourceConfig)
		wantType errors.ErrorType
	}{
		{
			name:     "unknown driver",
			mutate:   func(c *config.DBSourceConfig) { c.JDBCPluginName = "db2" },
			wantType: errors.ErrorTypeNotFound,
		},
		{
			name:     "missing table",
			mutate:   func(c *config.DBSourceConfig) { c.TableName = "invoices" },
			wantType: errors.ErrorTypeConnection,
		},
		{
			name:     "missing placeholder",
			mutate:   func(c *config.DBSourceConfig) { c.ImportQuery = "SELECT id FROM orders" },
			wantType: errors.ErrorTypeConfig,
		},
		{
			name:     "bad column case",
			mutate:   func(c *config.DBSourceConfig) { c.ColumnNameCase = "camel" },
			wantType: errors.ErrorTypeConfig,
		},
		{
			name: "null bounds",
			mutate: func(c *config.DBSourceConfig) {
				c.BoundingQuery = "SELECT MIN(id), MAX(id) FROM orders WHERE id < 0"
			},
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "bad macro",
			mutate:   func(c *config.DBSourceConfig) { c.BoundingQuery = "SELECT '${logicalStartTime(yyyy,1w)}', 1" },
			wantType: errors.ErrorTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(path)
			tt.mutate(cfg)
			src, err := New(cfg)
			require.NoError(t, err)
			defer src.Close(ctx)

			err = src.Prepare(ctx, time.Now())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestReadBeforePrepare(t *testing.T) {
	src, err := New(newConfig("unused.db"))
	require.NoError(t, err)
	_, err = src.Read(context.Background())
	assert.Error(t, err)
	_, err = src.Discover(context.Background())
	assert.Error(t, err)
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := newConfig(testutil.OrdersDB(t, 50))
	cfg.Performance.BufferSize = 1

	src, err := New(cfg)
	require.NoError(t, err)
	defer src.Close(context.Background())
	require.NoError(t, src.Prepare(ctx, time.Now()))

	stream, err := src.Read(ctx)
	require.NoError(t, err)
	<-stream.Records
	cancel()

	for r := range stream.Records {
		r.Release()
	}
	assert.ErrorIs(t, <-stream.Errors, context.Canceled)
}

func TestSplitQueryTimeout(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(testutil.OrdersDB(t, 10))
	cfg.EnableAutoCommit = true

	src, err := New(cfg)
	require.NoError(t, err)
	defer src.Close(ctx)
	require.NoError(t, src.Prepare(ctx, time.Now()))

	cfg.Timeouts.Query = time.Nanosecond
	stream, err := src.Read(ctx)
	require.NoError(t, err)

	_, err = drain(t, stream)
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeTimeout))
	assert.True(t, errors.IsRetryable(err))
}
