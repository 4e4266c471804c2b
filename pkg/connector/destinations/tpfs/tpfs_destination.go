// Package tpfs implements the time-partitioned fileset sink. Each run writes
// one partition, named from the logical start time, into a blob bucket.
package tpfs

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocloud.dev/blob"

	"github.com/ThalesGroup/hydrator-plugins/pkg/compression"
	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/metrics"
	"github.com/ThalesGroup/hydrator-plugins/pkg/partition"
)

// processKeys registers partitions for sinks without a catalog.
var processKeys = partition.NewMemoryStore()

// Option configures a Sink.
type Option func(*Sink)

// WithKeyStore replaces the partition key store.
func WithKeyStore(store partition.KeyStore) Option {
	return func(s *Sink) { s.store = store }
}

// Sink implements core.Destination.
type Sink struct {
	cfg         *config.TPFSSinkConfig
	format      string
	compression compression.Algorithm

	store     partition.KeyStore
	catalogDB *sql.DB
	bucket    *blob.Bucket

	key    *partition.Key
	schema *core.Schema

	metrics *metrics.Collector
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewTPFSSink creates a sink from its configuration.
func NewTPFSSink(cfg *config.TPFSSinkConfig) (core.Destination, error) {
	return New(cfg)
}

// New is NewTPFSSink returning the concrete type.
func New(cfg *config.TPFSSinkConfig, opts ...Option) (*Sink, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sink configuration is required")
	}
	s := &Sink{
		cfg:     cfg,
		metrics: metrics.NewCollector(cfg.Name, metrics.WithExport(cfg.Observability.EnableMetrics)),
		logger:  logger.Get().With(zap.String("component", "tpfs_sink"), zap.String("dataset", cfg.Name)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Validate checks the configuration, format and compression without I/O.
func (s *Sink) Validate() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	alg, err := compression.Parse(s.cfg.Compression)
	if err != nil {
		return err
	}
	format, err := parseFormat(s.cfg.Format, alg)
	if err != nil {
		return err
	}
	s.format = format
	s.compression = alg
	return nil
}

// Prepare claims the partition for logicalTime. A partition that already
// has files in storage, or is already registered, is a conflict.
func (s *Sink) Prepare(ctx context.Context, logicalTime time.Time) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if s.store == nil {
		store, err := s.openKeyStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	bucket, err := openBucket(ctx, s.cfg.BucketURL)
	if err != nil {
		return err
	}
	s.bucket = bucket

	spec := s.cfg.PartitionSpec()
	ms := logicalTime.UnixMilli()
	key, err := partition.Derive(spec, ms)
	if err != nil {
		return err
	}

	exists, err := partitionExists(ctx, bucket, key.FullPath)
	if err != nil {
		return err
	}
	if exists {
		return errors.Newf(errors.ErrorTypeConflict, "partition %q already has files", key.FullPath).
			WithDetail("partition_time", key.Time)
	}

	key, err = partition.NewGenerator(s.store).ComputeKey(ctx, spec, ms)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.key = &key
	s.mu.Unlock()

	s.metrics.RecordCounter(metrics.PartitionsRegistered, 1)
	s.logger.Info("partition registered",
		zap.String("path", key.FullPath),
		zap.Int64("partition_time", key.Time))
	return nil
}

func (s *Sink) openKeyStore(ctx context.Context) (partition.KeyStore, error) {
	cat := s.cfg.Catalog
	if !cat.Enabled() {
		return processKeys, nil
	}

	d, err := driver.Resolve(cat.JDBCPluginType, cat.JDBCPluginName)
	if err != nil {
		return nil, err
	}
	db, err := driver.Connect(ctx, d, driver.Connection{
		ConnectionString: cat.ConnectionString,
		Timeout:          s.cfg.Timeouts.Connection,
	})
	if err != nil {
		return nil, err
	}
	store, err := partition.NewCatalogStore(db, d.Dialect(), cat.Table)
	if err == nil {
		err = store.EnsureTable(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.catalogDB = db
	return store, nil
}

// Partition returns the claimed partition key, or nil before Prepare.
func (s *Sink) Partition() *partition.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// CreateSchema records the schema used for headers and avro encoding.
func (s *Sink) CreateSchema(_ context.Context, schema *core.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
	return nil
}

// Write streams every record into the partition file and then writes the
// success marker. On any failure the part file is not committed.
func (s *Sink) Write(ctx context.Context, stream *core.RecordStream) error {
	s.mu.Lock()
	key, schema := s.key, s.schema
	s.mu.Unlock()
	if key == nil || s.bucket == nil {
		return errors.New(errors.ErrorTypeInternal, "sink is not prepared")
	}

	timer := metrics.NewTimer()
	path := objectKey(key.FullPath, fileName(s.format, s.compression))

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bw, err := s.bucket.NewWriter(wctx, path, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open part file").WithDetail("path", path)
	}
	counter := &countingWriter{w: bw}

	abort := func(err error) error {
		cancel()
		_ = bw.Close()
		return err
	}

	alg := s.compression
	if compressesInternally(s.format) {
		alg = compression.None
	}
	comp, err := compression.NewWriter(counter, alg, compression.Default)
	if err != nil {
		return abort(errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor"))
	}

	enc, err := newEncoder(s.format, comp, schema, s.compression, s.cfg.Performance.BatchSize)
	if err != nil {
		return abort(err)
	}

	var n int64
	for r := range stream.Records {
		err := enc.Encode(r)
		r.Release()
		if err != nil {
			return abort(errors.Wrap(err, errors.TypeOf(err), "failed to encode record").WithDetail("path", path))
		}
		n++
	}
	if err := <-stream.Errors; err != nil {
		return abort(err)
	}
	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	if err := enc.Close(); err != nil {
		return abort(errors.Wrap(err, errors.ErrorTypeFile, "failed to flush encoder"))
	}
	if err := comp.Close(); err != nil {
		return abort(errors.Wrap(err, errors.ErrorTypeFile, "failed to flush compressor"))
	}
	if err := bw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to commit part file").WithDetail("path", path)
	}

	if err := s.bucket.WriteAll(ctx, objectKey(key.FullPath, SuccessMarker), nil, nil); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write success marker")
	}

	elapsed := timer.Stop()
	s.metrics.RecordCounter(metrics.RecordsWritten, float64(n))
	s.metrics.RecordCounter(metrics.BytesWritten, float64(counter.n))
	s.metrics.RecordHistogram(metrics.WriteSeconds, elapsed.Seconds())
	s.logger.Info("partition written",
		zap.String("path", path),
		zap.Int64("records", n),
		zap.Int64("bytes", counter.n),
		zap.Duration("elapsed", elapsed))
	return nil
}

// Close releases the bucket and the catalog connection.
func (s *Sink) Close(_ context.Context) error {
	var firstErr error
	if s.bucket != nil {
		if err := s.bucket.Close(); err != nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close bucket")
		}
		s.bucket = nil
	}
	if s.catalogDB != nil {
		if err := s.catalogDB.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeConnection, "failed to close partition catalog")
		}
		s.catalogDB = nil
	}
	return firstErr
}

// Metrics returns write totals and the partition path.
func (s *Sink) Metrics() map[string]interface{} {
	m := s.metrics.GetAll()
	if key := s.Partition(); key != nil {
		m["partition"] = key.FullPath
		m["partition_time"] = key.Time
	}
	return m
}
