// Package pipeline executes one hydration job: it plans and reads the source
// splits, claims the sink partition and streams every record into it.
//
// A run moves through these steps:
//
//  1. validate the job and check that every named driver is registered
//  2. prepare the source (table check, macro expansion, split planning)
//  3. discover the source schema
//  4. prepare the sink (claim the partition) and hand it the schema
//  5. read all splits concurrently and write them into the partition
//
// The first failure cancels the run. Source and sink are always closed.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/registry"
	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/metrics"
	"github.com/ThalesGroup/hydrator-plugins/pkg/observability"
	"github.com/ThalesGroup/hydrator-plugins/pkg/partition"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
	"github.com/ThalesGroup/hydrator-plugins/pkg/split"
)

const (
	// SourceConnector is the registry name of the database source.
	SourceConnector = "database"
	// SinkConnector is the registry name of the time-partitioned fileset sink.
	SinkConnector = "tpfs"
)

// Result summarises a finished run.
type Result struct {
	RunID          string
	LogicalTime    time.Time
	Partition      string
	Splits         int
	RecordsRead    int64
	RecordsWritten int64
	Duration       time.Duration
}

// Runner executes jobs.
type Runner struct {
	job    *config.JobConfig
	now    func() time.Time
	newID  func() string
	source func(*config.DBSourceConfig) (core.Source, error)
	sink   func(*config.TPFSSinkConfig) (core.Destination, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used when the job has no logicalStartTime.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSink replaces the sink factory.
func WithSink(factory func(*config.TPFSSinkConfig) (core.Destination, error)) Option {
	return func(r *Runner) { r.sink = factory }
}

// WithSource replaces the source factory.
func WithSource(factory func(*config.DBSourceConfig) (core.Source, error)) Option {
	return func(r *Runner) { r.source = factory }
}

// New returns a runner for job. Connectors come from the global registry
// unless replaced by options.
func New(job *config.JobConfig, opts ...Option) *Runner {
	r := &Runner{
		job:   job,
		now:   time.Now,
		newID: uuid.NewString,
		source: func(cfg *config.DBSourceConfig) (core.Source, error) {
			return registry.CreateSource(SourceConnector, cfg)
		},
		sink: func(cfg *config.TPFSSinkConfig) (core.Destination, error) {
			return registry.CreateDestination(SinkConnector, cfg)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks the job and driver availability without any I/O.
func (r *Runner) Validate() error {
	if r.job == nil {
		return errors.New(errors.ErrorTypeConfig, "job configuration is required")
	}
	if err := r.job.Validate(); err != nil {
		return err
	}
	return driver.ValidatePipeline(r.job)
}

// Plan prepares the source and returns its split tasks without reading data.
func (r *Runner) Plan(ctx context.Context) ([]split.Task, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	logical, err := r.job.LogicalTime(r.now())
	if err != nil {
		return nil, err
	}

	src, err := r.source(&r.job.Source)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(ctx, "source", src.Close)

	if err := src.Prepare(ctx, logical); err != nil {
		return nil, err
	}
	planner, ok := src.(interface{ Tasks() []split.Task })
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "source does not expose its split plan")
	}
	return planner.Tasks(), nil
}

// Partition derives the partition the job would write without claiming it.
func (r *Runner) Partition() (partition.Key, error) {
	if r.job == nil {
		return partition.Key{}, errors.New(errors.ErrorTypeConfig, "job configuration is required")
	}
	if err := r.job.Sink.Validate(); err != nil {
		return partition.Key{}, err
	}
	logical, err := r.job.LogicalTime(r.now())
	if err != nil {
		return partition.Key{}, err
	}
	return partition.Derive(r.job.Sink.PartitionSpec(), logical.UnixMilli())
}

// Run executes the job once.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	logical, err := r.job.LogicalTime(r.now())
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: r.newID(), LogicalTime: logical}
	ctx = logger.ContextWithRunID(ctx, res.RunID)
	log := logger.WithContext(ctx).With(zap.String("job", r.job.Name))

	ctx, span := observability.StartSpan(ctx, "hydrator.run")
	span.SetAttribute("job", r.job.Name)
	span.SetAttribute("run_id", res.RunID)
	defer span.End()

	timer := metrics.NewTimer()
	log.Info("run started", zap.Time("logical_time", logical))

	err = r.run(ctx, logical, res, log)
	res.Duration = timer.Stop()

	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		log.Error("run failed",
			zap.Error(err),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Duration("elapsed", res.Duration))
	} else {
		log.Info("run completed",
			zap.String("partition", res.Partition),
			zap.Int("splits", res.Splits),
			zap.Int64("records", res.RecordsWritten),
			zap.Duration("elapsed", res.Duration))
	}
	if r.job.MetricsEnabled() {
		metrics.Runs.WithLabelValues(r.job.Name, status).Inc()
		metrics.RunDuration.WithLabelValues(r.job.Name).Observe(res.Duration.Seconds())
	}

	return res, err
}

func (r *Runner) run(ctx context.Context, logical time.Time, res *Result, log *zap.Logger) error {
	src, err := r.source(&r.job.Source)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, "source", src.Close)

	dst, err := r.sink(&r.job.Sink)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, "sink", dst.Close)

	if err := observability.Trace(ctx, "source.prepare", func(ctx context.Context) error {
		return src.Prepare(ctx, logical)
	}); err != nil {
		return err
	}
	if planner, ok := src.(interface{ Tasks() []split.Task }); ok {
		res.Splits = len(planner.Tasks())
	}

	var schema *core.Schema
	if err := observability.Trace(ctx, "source.discover", func(ctx context.Context) error {
		schema, err = src.Discover(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := observability.Trace(ctx, "sink.prepare", func(ctx context.Context) error {
		if err := dst.Prepare(ctx, logical); err != nil {
			return err
		}
		return dst.CreateSchema(ctx, schema)
	}); err != nil {
		return err
	}
	if p, ok := dst.(interface{ Partition() *partition.Key }); ok && p.Partition() != nil {
		res.Partition = p.Partition().FullPath
	}
	log.Info("partition claimed", zap.String("partition", res.Partition), zap.Int("splits", res.Splits))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := src.Read(runCtx)
	if err != nil {
		return err
	}

	tracker := metrics.NewThroughputTracker(r.job.Source.Name, r.job.Sink.Name)
	counted, read := countStream(stream, tracker)

	err = observability.Trace(runCtx, "sink.write", func(ctx context.Context) error {
		return dst.Write(ctx, counted)
	})
	if err != nil {
		cancel()
		drain(counted)
	}
	res.RecordsRead = read()
	if r.job.MetricsEnabled() {
		tracker.GetAndReset()
	}
	if err != nil {
		return err
	}
	res.RecordsWritten = res.RecordsRead
	return nil
}

// countStream forwards stream while counting records. The returned function
// blocks until forwarding has finished and reports the count.
func countStream(stream *core.RecordStream, tracker *metrics.ThroughputTracker) (*core.RecordStream, func() int64) {
	records := make(chan *pool.Record, cap(stream.Records))
	var (
		n  int64
		wg sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(records)
		for rec := range stream.Records {
			n++
			records <- rec
		}
		tracker.Increment(n)
	}()
	return &core.RecordStream{Records: records, Errors: stream.Errors}, func() int64 {
		wg.Wait()
		return n
	}
}

// drain releases whatever the source still produces after a failed write.
func drain(stream *core.RecordStream) {
	for rec := range stream.Records {
		rec.Release()
	}
}

func closeQuietly(ctx context.Context, what string, closeFn func(context.Context) error) {
	if err := closeFn(ctx); err != nil {
		logger.WithContext(ctx).Warn("failed to close "+what, zap.Error(err))
	}
}
