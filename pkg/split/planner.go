// Package split turns a bounding query result into independent range queries.
//
// An import query carries the $CONDITIONS placeholder. The planner divides the
// [min, max] interval of the split column into contiguous, non-overlapping
// ranges and substitutes one range condition per task, so the tasks can run
// concurrently without reading a row twice.
package split

import (
	"fmt"
	"strings"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// Placeholder is the literal each task replaces with its range condition.
const Placeholder = "$CONDITIONS"

// DefaultSplitCount is used when a split column is set but no count is given.
const DefaultSplitCount = 2

const alwaysTrue = "(1 = 1)"

// ImportSpec is the planning input taken from the source configuration.
type ImportSpec struct {
	ImportQuery   string
	BoundingQuery string
	SplitColumn   string
	// SplitCount is nil when unset
	SplitCount *int
}

// Validate checks the import settings before any query runs.
func (s ImportSpec) Validate() error {
	if strings.TrimSpace(s.ImportQuery) == "" {
		return errors.New(errors.ErrorTypeConfig, "importQuery is required")
	}
	if s.SplitCount != nil && *s.SplitCount < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "numSplits must be at least 1, got %d", *s.SplitCount)
	}
	if s.SplitCount != nil && *s.SplitCount == 1 {
		return nil
	}
	if !strings.Contains(s.ImportQuery, Placeholder) {
		return errors.Newf(errors.ErrorTypeConfig,
			"importQuery %s must contain the string '%s'", s.ImportQuery, Placeholder)
	}
	if strings.TrimSpace(s.SplitColumn) == "" {
		return errors.New(errors.ErrorTypeConfig, "splitBy must be specified if numSplits is not set to 1")
	}
	if strings.TrimSpace(s.BoundingQuery) == "" {
		return errors.New(errors.ErrorTypeConfig, "boundingQuery must be specified if numSplits is not set to 1")
	}
	return nil
}

// SingleSplit reports whether exactly one task is requested.
func (s ImportSpec) SingleSplit() bool {
	if s.SplitCount != nil {
		return *s.SplitCount == 1
	}
	return strings.TrimSpace(s.SplitColumn) == ""
}

// Bounds is the (min, max) pair returned by a bounding query.
type Bounds struct {
	Min interface{}
	Max interface{}
}

// Range is one interval of the split column.
type Range struct {
	Lower interface{}
	Upper interface{}
	// UpperInclusive is false for half-open ranges of continuous domains
	UpperInclusive bool
	IsFirst        bool
	IsLast         bool
}

// Task is one independently executable query.
type Task struct {
	Index     int
	Condition string
	Query     string
	// Range is nil for the single-split task and the null task
	Range *Range
}

// Options tunes how ranges become conditions.
type Options struct {
	// OpenEnds drops the lower bound of the first range and the upper bound of
	// the last one, so rows written after the bounding query are still read.
	OpenEnds bool
	// NullSplit adds a task reading rows whose split column is NULL.
	NullSplit bool
	// DefaultSplitCount applies when a split column is set without a count.
	DefaultSplitCount int
	// TimeLiteral renders time bounds as SQL literals.
	TimeLiteral func(time.Time) string
}

// DefaultOptions returns open-ended plans without a null task.
func DefaultOptions() Options {
	return Options{
		OpenEnds:          true,
		DefaultSplitCount: DefaultSplitCount,
		TimeLiteral:       ANSITimestamp,
	}
}

// Planner produces split tasks.
type Planner struct {
	opts Options
}

// NewPlanner creates a planner, filling unset options with defaults.
func NewPlanner(opts Options) *Planner {
	if opts.DefaultSplitCount <= 0 {
		opts.DefaultSplitCount = DefaultSplitCount
	}
	if opts.TimeLiteral == nil {
		opts.TimeLiteral = ANSITimestamp
	}
	return &Planner{opts: opts}
}

// Plan plans with DefaultOptions.
func Plan(spec ImportSpec, bounds Bounds) ([]Task, error) {
	return NewPlanner(DefaultOptions()).Plan(spec, bounds)
}

// Plan divides bounds into tasks. Bounds are ignored for a single split.
// Equal bounds give one range. With OpenEnds that task's condition is
// (1 = 1); otherwise it selects exactly the bound value.
func (p *Planner) Plan(spec ImportSpec, bounds Bounds) ([]Task, error) {
	if strings.TrimSpace(spec.ImportQuery) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "import query is empty")
	}

	if spec.SingleSplit() {
		return []Task{{
			Index:     0,
			Condition: alwaysTrue,
			Query:     Substitute(spec.ImportQuery, alwaysTrue),
		}}, nil
	}

	column := strings.TrimSpace(spec.SplitColumn)
	if column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "split column is required for more than one split")
	}
	if !strings.Contains(spec.ImportQuery, Placeholder) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "import query does not contain %s", Placeholder)
	}

	count := p.opts.DefaultSplitCount
	if spec.SplitCount != nil {
		count = *spec.SplitCount
	}
	if count < 1 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "split count must be at least 1, got %d", count)
	}

	d, ranges, err := p.ranges(bounds, count)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(ranges)+1)
	for i := range ranges {
		r := ranges[i]
		cond := p.condition(column, r, d)
		tasks = append(tasks, Task{
			Index:     i,
			Condition: cond,
			Query:     Substitute(spec.ImportQuery, cond),
			Range:     &r,
		})
	}

	if p.opts.NullSplit {
		cond := fmt.Sprintf("(%s IS NULL)", column)
		tasks = append(tasks, Task{
			Index:     len(tasks),
			Condition: cond,
			Query:     Substitute(spec.ImportQuery, cond),
		})
	}

	return tasks, nil
}

// Ranges divides [bounds.Min, bounds.Max] into at most count ranges.
func (p *Planner) Ranges(bounds Bounds, count int) ([]Range, error) {
	_, ranges, err := p.ranges(bounds, count)
	return ranges, err
}

func (p *Planner) ranges(bounds Bounds, count int) (domain, []Range, error) {
	if bounds.Min == nil || bounds.Max == nil {
		return nil, nil, errors.New(errors.ErrorTypeValidation,
			"bounding query returned a null bound; the table is empty or the split column is all NULL").
			WithDetail("min", bounds.Min).
			WithDetail("max", bounds.Max)
	}

	d, lo, hi, err := normalize(bounds)
	if err != nil {
		return nil, nil, err
	}

	switch c := d.compare(lo, hi); {
	case c > 0:
		return nil, nil, errors.Newf(errors.ErrorTypeValidation,
			"bounding query minimum %s is greater than maximum %s", d.literal(lo, p.opts), d.literal(hi, p.opts))
	case c == 0 || count == 1:
		return d, []Range{{Lower: lo, Upper: hi, UpperInclusive: true, IsFirst: true, IsLast: true}}, nil
	}

	ranges := d.split(lo, hi, count)
	ranges[0].IsFirst = true
	ranges[len(ranges)-1].IsLast = true
	ranges[len(ranges)-1].UpperInclusive = true
	return d, ranges, nil
}

func (p *Planner) condition(column string, r Range, d domain) string {
	openLow := p.opts.OpenEnds && r.IsFirst
	openHigh := p.opts.OpenEnds && r.IsLast

	lower := fmt.Sprintf("%s >= %s", column, d.literal(r.Lower, p.opts))
	op, hi := "<", r.Upper
	if r.UpperInclusive {
		op = "<="
		if c, ok := d.(interface{ inclusiveUpper(interface{}) interface{} }); ok {
			hi = c.inclusiveUpper(hi)
		}
	}
	upper := fmt.Sprintf("%s %s %s", column, op, d.literal(hi, p.opts))

	switch {
	case openLow && openHigh:
		return alwaysTrue
	case openLow:
		return "(" + upper + ")"
	case openHigh:
		return "(" + lower + ")"
	default:
		return "(" + lower + " AND " + upper + ")"
	}
}

// Substitute replaces every placeholder occurrence with cond.
func Substitute(query, cond string) string {
	return strings.ReplaceAll(query, Placeholder, cond)
}
