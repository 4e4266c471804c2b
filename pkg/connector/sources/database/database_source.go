// Package database implements the batch source that reads an import query
// in parallel splits through any registered driver.
package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/core"
	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/fieldcase"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/metrics"
	"github.com/ThalesGroup/hydrator-plugins/pkg/partition"
	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
	"github.com/ThalesGroup/hydrator-plugins/pkg/split"
)

// Source implements core.Source for relational databases.
type Source struct {
	cfg       *config.DBSourceConfig
	fieldCase fieldcase.Case

	driver driver.Driver
	db     *sql.DB

	// Prepared state
	importQuery   string
	boundingQuery string
	tasks         []split.Task
	schema        *core.Schema

	metrics *metrics.Collector
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewDatabaseSource creates a source from its configuration. No I/O happens
// until Prepare.
func NewDatabaseSource(cfg *config.DBSourceConfig) (core.Source, error) {
	return New(cfg)
}

// New is NewDatabaseSource returning the concrete type.
func New(cfg *config.DBSourceConfig) (*Source, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source configuration is required")
	}
	return &Source{
		cfg:     cfg,
		metrics: metrics.NewCollector(cfg.Name, metrics.WithExport(cfg.Observability.EnableMetrics)),
		logger:  logger.Get().With(zap.String("component", "database_source"), zap.String("source", cfg.Name)),
	}, nil
}

// Validate checks the configuration and the column case policy.
func (s *Source) Validate() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	c, err := fieldcase.Parse(s.cfg.ColumnNameCase)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid columnNameCase")
	}
	s.fieldCase = c
	return nil
}

func (s *Source) connection() driver.Connection {
	return driver.Connection{
		ConnectionString: s.cfg.ConnectionString,
		User:             s.cfg.User,
		Password:         s.cfg.Password,
		Timeout:          s.cfg.Timeouts.Connection,
		MaxOpenConns:     s.cfg.Performance.MaxOpenConns,
	}
}

// Prepare resolves the driver, checks the table, expands logical-time
// macros, runs the bounding query and plans the splits.
func (s *Source) Prepare(ctx context.Context, logicalTime time.Time) error {
	if err := s.Validate(); err != nil {
		return err
	}

	d, err := driver.Resolve(s.cfg.JDBCPluginType, s.cfg.JDBCPluginName)
	if err != nil {
		return err
	}

	if s.cfg.TableName != "" {
		exists, err := driver.TableExists(ctx, d, s.connection(), s.cfg.TableName)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Newf(errors.ErrorTypeConnection, "table %s does not exist", s.cfg.TableName).
				WithDetail("plugin_id", s.cfg.PluginID())
		}
	}

	importQuery, err := partition.ExpandMacros(s.cfg.ImportQuery, logicalTime)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid macro in importQuery")
	}
	boundingQuery, err := partition.ExpandMacros(s.cfg.BoundingQuery, logicalTime)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid macro in boundingQuery")
	}

	db, err := driver.Connect(ctx, d, s.connection())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.driver = d
	s.db = db
	s.importQuery = importQuery
	s.boundingQuery = boundingQuery
	s.mu.Unlock()

	tasks, err := s.plan(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()

	s.metrics.RecordCounter(metrics.SplitsPlanned, float64(len(tasks)))
	s.logger.Info("source prepared",
		zap.String("plugin_id", s.cfg.PluginID()),
		zap.Int("splits", len(tasks)))
	return nil
}

func (s *Source) plan(ctx context.Context) ([]split.Task, error) {
	spec := s.cfg.ImportSpec()
	spec.ImportQuery = s.importQuery
	spec.BoundingQuery = s.boundingQuery

	opts := s.cfg.SplitOptions()
	opts.TimeLiteral = s.driver.Dialect().TimestampLiteral
	planner := split.NewPlanner(opts)

	var bounds split.Bounds
	if !spec.SingleSplit() {
		qctx, cancel := s.queryContext(ctx)
		defer cancel()

		b, err := split.QueryBounds(qctx, s.db, spec.BoundingQuery)
		if err != nil {
			return nil, err
		}
		bounds = b
		s.logger.Debug("bounds queried", zap.Any("min", b.Min), zap.Any("max", b.Max))
	}
	return planner.Plan(spec, bounds)
}

// Tasks returns the planned split tasks. It is empty before Prepare.
func (s *Source) Tasks() []split.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]split.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Source) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeouts.Query > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeouts.Query)
	}
	return context.WithCancel(ctx)
}

// queryFailure classifies a split query error. Hitting the per-split query
// timeout is a Timeout error; anything else is a Query error.
func queryFailure(qctx context.Context, err error, msg string, task split.Task) *errors.Error {
	errType := errors.ErrorTypeQuery
	if qctx.Err() == context.DeadlineExceeded {
		errType = errors.ErrorTypeTimeout
	}
	return errors.Wrap(err, errType, msg).WithDetail("split", task.Index)
}

func (s *Source) prepared() (*sql.DB, []split.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, nil, errors.New(errors.ErrorTypeInternal, "source is not prepared")
	}
	return s.db, s.tasks, nil
}

// Read runs every split task, at most performance.workers at a time, and
// streams the rows as records. The first failing task cancels the others.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	db, tasks, err := s.prepared()
	if err != nil {
		return nil, err
	}

	buffer := s.cfg.Performance.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	records := make(chan *pool.Record, buffer)
	errs := make(chan error, 1)

	workers := s.cfg.Performance.GetWorkers()

	go func() {
		defer close(records)
		defer close(errs)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, task := range tasks {
			task := task
			g.Go(func() error {
				return s.runTask(gctx, db, task, records)
			})
		}
		if err := g.Wait(); err != nil {
			errs <- err
		}
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Source) runTask(ctx context.Context, db *sql.DB, task split.Task, out chan<- *pool.Record) error {
	ctx = logger.ContextWithSplit(ctx, task.Index)
	log := logger.WithContext(ctx).With(zap.String("source", s.cfg.Name))
	timer := metrics.NewTimer()

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	var q queryer = db
	if !s.cfg.EnableAutoCommit {
		tx, err := db.BeginTx(qctx, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction").
				WithDetail("split", task.Index)
		}
		// reads only; nothing to commit
		defer func() {
			if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
				log.Warn("failed to end read transaction", zap.Error(rerr))
			}
		}()
		q = tx
	}

	log.Debug("running split", zap.String("condition", task.Condition))
	rows, err := q.QueryContext(qctx, task.Query)
	if err != nil {
		return queryFailure(qctx, err, "failed to run split query", task).
			WithDetail("query", task.Query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read columns")
	}
	names, err := fieldcase.Names(columns, s.fieldCase)
	if err != nil {
		return err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read column types")
	}
	binary := make([]bool, len(types))
	for i, ct := range types {
		binary[i] = fieldType(ct) == core.FieldTypeBinary
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to scan row").
				WithDetail("split", task.Index)
		}

		record := pool.NewRecord(s.cfg.Name, task.Index)
		for i, name := range names {
			record.SetData(name, convertValue(values[i], binary[i]))
		}

		select {
		case out <- record:
			n++
		case <-ctx.Done():
			record.Release()
			return ctx.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return queryFailure(qctx, err, "failed to read split rows", task)
	}

	elapsed := timer.Stop()
	s.metrics.RecordCounter(metrics.RecordsRead, float64(n))
	s.metrics.RecordCounter(metrics.SplitsCompleted, 1)
	s.metrics.RecordHistogram(metrics.SplitSeconds, elapsed.Seconds())
	log.Debug("split done", zap.Int64("records", n), zap.Duration("elapsed", elapsed))
	return nil
}

func convertValue(v interface{}, binary bool) interface{} {
	if b, ok := v.([]byte); ok {
		if binary {
			out := make([]byte, len(b))
			copy(out, b)
			return out
		}
		return string(b)
	}
	return v
}

// Close releases the connection pool.
func (s *Source) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close connection pool")
	}
	return nil
}

// Metrics returns read totals.
func (s *Source) Metrics() map[string]interface{} {
	return s.metrics.GetAll()
}
