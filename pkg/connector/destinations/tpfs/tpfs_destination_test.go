package tpfs

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/hydrator-plugins/pkg/compression"
	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/sqlite"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/json"
	"github.com/ThalesGroup/hydrator-plugins/pkg/partition"
	"github.com/ThalesGroup/hydrator-plugins/pkg/testutil"
)

var logical = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newSinkConfig(dir string) *config.TPFSSinkConfig {
	cfg := config.NewTPFSSinkConfig("orders")
	cfg.BucketURL = "file://" + filepath.ToSlash(dir)
	cfg.FilePathFormat = "yyyy-MM-dd/HH"
	return cfg
}

var sampleRows = []map[string]interface{}{
	{"id": int64(1), "customer": "ada", "total": 12.5},
	{"id": int64(2), "customer": "grace", "total": 7.25},
	{"id": int64(3), "customer": nil, "total": 1.0},
}

var sampleSchema = &core.Schema{Name: "orders-source", Fields: []core.Field{
	{Name: "id", Type: core.FieldTypeInt},
	{Name: "customer", Type: core.FieldTypeString, Nullable: true},
	{Name: "total", Type: core.FieldTypeFloat},
}}

func writePartition(t *testing.T, cfg *config.TPFSSinkConfig, store partition.KeyStore, stream *core.RecordStream) (*Sink, error) {
	t.Helper()
	ctx := context.Background()
	sink, err := New(cfg, WithKeyStore(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close(ctx) })

	require.NoError(t, sink.Prepare(ctx, logical))
	require.NoError(t, sink.CreateSchema(ctx, sampleSchema))
	return sink, sink.Write(ctx, stream)
}

func TestWriteJSONLGzip(t *testing.T) {
	dir := t.TempDir()
	cfg := newSinkConfig(dir)
	cfg.Compression = "gzip"

	sink, err := writePartition(t, cfg, partition.NewMemoryStore(), testutil.StreamOf("orders-source", sampleRows, nil))
	require.NoError(t, err)

	key := sink.Partition()
	require.NotNil(t, key)
	assert.Equal(t, "orders/2024-03-01/10", key.FullPath)
	assert.Equal(t, logical.UnixMilli(), key.Time)

	raw, err := os.ReadFile(filepath.Join(dir, "orders", "2024-03-01", "10", "part-00000.jsonl.gz"))
	require.NoError(t, err)
	r, err := compression.NewReader(bytes.NewReader(raw), compression.Gzip)
	require.NoError(t, err)

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 3)
	assert.Equal(t, "ada", lines[0]["customer"])
	assert.Nil(t, lines[2]["customer"])

	assert.FileExists(t, filepath.Join(dir, "orders", "2024-03-01", "10", SuccessMarker))

	m := sink.Metrics()
	assert.Equal(t, float64(3), m["records_written"])
	assert.Equal(t, "orders/2024-03-01/10", m["partition"])
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := newSinkConfig(dir)
	cfg.Format = "csv"
	cfg.BasePath = "/warehouse/orders/"

	_, err := writePartition(t, cfg, partition.NewMemoryStore(), testutil.StreamOf("orders-source", sampleRows, nil))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "warehouse", "orders", "2024-03-01", "10", "part-00000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,customer,total\n1,ada,12.5\n2,grace,7.25\n3,,1\n", string(raw))
}

func TestWriteAvroSnappy(t *testing.T) {
	dir := t.TempDir()
	cfg := newSinkConfig(dir)
	cfg.Format = "avro"
	cfg.Compression = "snappy"

	_, err := writePartition(t, cfg, partition.NewMemoryStore(), testutil.StreamOf("orders-source", sampleRows, nil))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "orders", "2024-03-01", "10", "part-00000.avro"))
	require.NoError(t, err)
	defer f.Close()

	ocf, err := goavro.NewOCFReader(f)
	require.NoError(t, err)
	assert.Equal(t, goavro.CompressionSnappyLabel, ocf.CompressionName())

	var got []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		got = append(got, datum.(map[string]interface{}))
	}
	require.NoError(t, ocf.Err())
	require.Len(t, got, 3)
	assert.Equal(t, map[string]interface{}{"long": int64(1)}, got[0]["id"])
	assert.Equal(t, map[string]interface{}{"string": "grace"}, got[1]["customer"])
	assert.Nil(t, got[2]["customer"])
}

func TestWriteParquetZstd(t *testing.T) {
	dir := t.TempDir()
	cfg := newSinkConfig(dir)
	cfg.Format = "parquet"
	cfg.Compression = "zstd"
	cfg.Performance.BatchSize = 2

	_, err := writePartition(t, cfg, partition.NewMemoryStore(), testutil.StreamOf("orders-source", sampleRows, nil))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "orders", "2024-03-01", "10", "part-00000.parquet"))
	require.NoError(t, err)
	pf, err := file.NewParquetReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer pf.Close()

	assert.Equal(t, int64(3), pf.NumRows())
	// batch size 2 gives two row groups
	require.Equal(t, 2, pf.NumRowGroups())
	chunk, err := pf.MetaData().RowGroup(0).ColumnChunk(0)
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Zstd, chunk.Compression())

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, "id", tbl.Schema().Field(0).Name)

	ids := column[*array.Int64](t, tbl, 0)
	customers := column[*array.String](t, tbl, 1)
	totals := column[*array.Float64](t, tbl, 2)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, []string{"ada", "grace", ""}, customers)
	assert.Equal(t, []float64{12.5, 7.25, 1}, totals)
}

// column flattens a table column into Go values; nulls become zero values.
func column[A interface {
	arrow.Array
	Value(int) V
}, V any](t *testing.T, tbl arrow.Table, i int) []V {
	t.Helper()
	var out []V
	for _, chunk := range tbl.Column(i).Data().Chunks() {
		arr, ok := chunk.(A)
		require.True(t, ok, "column %d has type %T", i, chunk)
		for j := 0; j < arr.Len(); j++ {
			var v V
			if !arr.IsNull(j) {
				v = arr.Value(j)
			}
			out = append(out, v)
		}
	}
	return out
}

func TestPartitionConflicts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := partition.NewMemoryStore()

	_, err := writePartition(t, newSinkConfig(dir), store, testutil.StreamOf("orders-source", sampleRows, nil))
	require.NoError(t, err)

	// same key store
	again, err := New(newSinkConfig(t.TempDir()), WithKeyStore(store))
	require.NoError(t, err)
	defer again.Close(ctx)
	err = again.Prepare(ctx, logical)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// files already in storage
	fresh, err := New(newSinkConfig(dir), WithKeyStore(partition.NewMemoryStore()))
	require.NoError(t, err)
	defer fresh.Close(ctx)
	err = fresh.Prepare(ctx, logical)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// next hour is free
	next, err := New(newSinkConfig(dir), WithKeyStore(store))
	require.NoError(t, err)
	defer next.Close(ctx)
	require.NoError(t, next.Prepare(ctx, logical.Add(time.Hour)))
}

func TestWriteAbortsOnStreamError(t *testing.T) {
	dir := t.TempDir()
	readErr := errors.New(errors.ErrorTypeQuery, "split 2 failed")

	_, err := writePartition(t, newSinkConfig(dir), partition.NewMemoryStore(), testutil.StreamOf("orders-source", sampleRows, readErr))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))

	partDir := filepath.Join(dir, "orders", "2024-03-01", "10")
	assert.NoFileExists(t, filepath.Join(partDir, "part-00000.jsonl"))
	assert.NoFileExists(t, filepath.Join(partDir, SuccessMarker))
}

func TestCatalogKeyStore(t *testing.T) {
	ctx := context.Background()
	catalog := &config.CatalogConfig{
		JDBCPluginName:   "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "catalog.db"),
	}

	first := newSinkConfig(t.TempDir())
	first.Catalog = catalog
	s1, err := New(first)
	require.NoError(t, err)
	defer s1.Close(ctx)
	require.NoError(t, s1.Prepare(ctx, logical))

	// a different bucket, but the catalog already holds the key
	second := newSinkConfig(t.TempDir())
	second.Catalog = catalog
	s2, err := New(second)
	require.NoError(t, err)
	defer s2.Close(ctx)
	err = s2.Prepare(ctx, logical)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.TPFSSinkConfig)
		ok     bool
	}{
		{"defaults", func(*config.TPFSSinkConfig) {}, true},
		{"avro deflate", func(c *config.TPFSSinkConfig) { c.Format = "avro"; c.Compression = "deflate" }, true},
		{"avro gzip", func(c *config.TPFSSinkConfig) { c.Format = "avro"; c.Compression = "gzip" }, false},
		{"parquet", func(c *config.TPFSSinkConfig) { c.Format = "parquet" }, true},
		{"parquet lz4", func(c *config.TPFSSinkConfig) { c.Format = "parquet"; c.Compression = "lz4" }, true},
		{"parquet s2", func(c *config.TPFSSinkConfig) { c.Format = "parquet"; c.Compression = "s2" }, false},
		{"orc", func(c *config.TPFSSinkConfig) { c.Format = "orc" }, false},
		{"brotli", func(c *config.TPFSSinkConfig) { c.Compression = "brotli" }, false},
		{"bad offset", func(c *config.TPFSSinkConfig) { c.PartitionOffset = "1w" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newSinkConfig(t.TempDir())
			tt.mutate(cfg)
			s, err := New(cfg)
			require.NoError(t, err)
			err = s.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "part-00000.jsonl.zst", fileName(FormatJSONL, compression.Zstd))
	assert.Equal(t, "part-00000.csv", fileName(FormatCSV, compression.None))
	assert.Equal(t, "part-00000.avro", fileName(FormatAvro, compression.Snappy))
	assert.Equal(t, "part-00000.parquet", fileName(FormatParquet, compression.Zstd))
	assert.True(t, strings.HasPrefix(fileName(FormatCSV, compression.LZ4), "part-00000"))

	assert.Equal(t, "warehouse/orders/10/_SUCCESS", objectKey("/warehouse/orders/10", SuccessMarker))
	assert.Equal(t, "orders/10/", objectKey("orders/10/", ""))
}
