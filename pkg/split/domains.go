package split

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// domain is the arithmetic of one split column type.
type domain interface {
	name() string
	compare(a, b interface{}) int
	// split divides lo < hi into at most n ranges, in order, without setting IsFirst or IsLast.
	split(lo, hi interface{}, n int) []Range
	literal(v interface{}, opts Options) string
}

type kind int

const (
	kindInteger kind = iota
	kindFloat
	kindDecimal
	kindTime
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// normalize classifies both bounds and converts them to one common domain.
func normalize(b Bounds) (domain, interface{}, interface{}, error) {
	kLo, lo, err := classify(b.Min)
	if err != nil {
		return nil, nil, nil, err
	}
	kHi, hi, err := classify(b.Max)
	if err != nil {
		return nil, nil, nil, err
	}

	if kLo == kindTime || kHi == kindTime {
		if kLo != kHi {
			return nil, nil, nil, errors.New(errors.ErrorTypeValidation, "bounds mix time and numeric values")
		}
		return timeDomain{}, lo, hi, nil
	}

	k := kLo
	if kHi > k {
		k = kHi
	}
	switch k {
	case kindInteger:
		return integerDomain{}, lo, hi, nil
	case kindFloat:
		return floatDomain{}, toFloat(lo), toFloat(hi), nil
	default:
		return decimalDomain{}, toDecimal(lo), toDecimal(hi), nil
	}
}

func classify(v interface{}) (kind, interface{}, error) {
	switch x := v.(type) {
	case int:
		return kindInteger, big.NewInt(int64(x)), nil
	case int8:
		return kindInteger, big.NewInt(int64(x)), nil
	case int16:
		return kindInteger, big.NewInt(int64(x)), nil
	case int32:
		return kindInteger, big.NewInt(int64(x)), nil
	case int64:
		return kindInteger, big.NewInt(x), nil
	case uint:
		return kindInteger, new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return kindInteger, new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return kindInteger, new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return kindInteger, new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return kindInteger, new(big.Int).SetUint64(x), nil
	case *big.Int:
		if x == nil {
			break
		}
		return kindInteger, new(big.Int).Set(x), nil
	case float32:
		return classifyFloat(float64(x))
	case float64:
		return classifyFloat(x)
	case decimal.Decimal:
		return kindDecimal, x, nil
	case *decimal.Decimal:
		if x == nil {
			break
		}
		return kindDecimal, *x, nil
	case time.Time:
		return kindTime, x, nil
	case []byte:
		return classifyString(string(x))
	case string:
		return classifyString(x)
	}
	return 0, nil, errors.Newf(errors.ErrorTypeValidation, "unsupported split bound type %T", v)
}

func classifyFloat(f float64) (kind, interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil, errors.Newf(errors.ErrorTypeValidation, "split bound %v is not a finite number", f)
	}
	return kindFloat, f, nil
}

// classifyString parses text bounds returned by drivers that send numerics and times as strings.
func classifyString(s string) (kind, interface{}, error) {
	s = strings.TrimSpace(s)
	if i, ok := new(big.Int).SetString(s, 10); ok {
		return kindInteger, i, nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return kindDecimal, d, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return kindTime, t, nil
		}
	}
	return 0, nil, errors.Newf(errors.ErrorTypeValidation, "cannot split on non-numeric, non-time bound %q", s)
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case decimal.Decimal:
		return x.InexactFloat64()
	}
	return v.(float64)
}

func toDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case *big.Int:
		return decimal.NewFromBigInt(x, 0)
	case float64:
		return decimal.NewFromFloat(x)
	}
	return v.(decimal.Decimal)
}

// integerDomain produces closed ranges. The remainder of the division goes to
// the earliest ranges and the count shrinks when there are fewer values than splits.
type integerDomain struct{}

func (integerDomain) name() string { return "integer" }

func (integerDomain) compare(a, b interface{}) int {
	return a.(*big.Int).Cmp(b.(*big.Int))
}

func (integerDomain) split(lo, hi interface{}, n int) []Range {
	min, max := lo.(*big.Int), hi.(*big.Int)

	total := new(big.Int).Sub(max, min)
	total.Add(total, big.NewInt(1))
	count := big.NewInt(int64(n))
	if total.Cmp(count) < 0 {
		count.Set(total)
	}

	base, rem := new(big.Int).QuoRem(total, count, new(big.Int))
	one := big.NewInt(1)

	parts := int(count.Int64())
	ranges := make([]Range, 0, parts)
	start := new(big.Int).Set(min)
	for i := 0; i < parts; i++ {
		size := new(big.Int).Set(base)
		if big.NewInt(int64(i)).Cmp(rem) < 0 {
			size.Add(size, one)
		}
		end := new(big.Int).Add(start, size)
		end.Sub(end, one)
		ranges = append(ranges, Range{Lower: new(big.Int).Set(start), Upper: end, UpperInclusive: true})
		start = new(big.Int).Add(end, one)
	}
	return ranges
}

func (integerDomain) literal(v interface{}, _ Options) string {
	return v.(*big.Int).String()
}

// floatDomain produces half-open ranges of equal width.
type floatDomain struct{}

func (floatDomain) name() string { return "float" }

func (floatDomain) compare(a, b interface{}) int {
	x, y := a.(float64), b.(float64)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (floatDomain) split(lo, hi interface{}, n int) []Range {
	min, max := lo.(float64), hi.(float64)
	bounds := make([]interface{}, 0, n+1)
	bounds = append(bounds, min)
	for i := 1; i < n; i++ {
		b := min + (max-min)*float64(i)/float64(n)
		if b > bounds[len(bounds)-1].(float64) && b < max {
			bounds = append(bounds, b)
		}
	}
	bounds = append(bounds, max)
	return halfOpen(bounds)
}

func (floatDomain) literal(v interface{}, _ Options) string {
	return strconv.FormatFloat(v.(float64), 'g', -1, 64)
}

// decimalDomain splits exact numerics with decimal arithmetic.
type decimalDomain struct{}

func (decimalDomain) name() string { return "decimal" }

func (decimalDomain) compare(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

func (decimalDomain) split(lo, hi interface{}, n int) []Range {
	min, max := lo.(decimal.Decimal), hi.(decimal.Decimal)
	width := max.Sub(min)
	parts := decimal.NewFromInt(int64(n))

	bounds := make([]interface{}, 0, n+1)
	bounds = append(bounds, min)
	for i := 1; i < n; i++ {
		b := min.Add(width.Mul(decimal.NewFromInt(int64(i))).Div(parts))
		if b.GreaterThan(bounds[len(bounds)-1].(decimal.Decimal)) && b.LessThan(max) {
			bounds = append(bounds, b)
		}
	}
	bounds = append(bounds, max)
	return halfOpen(bounds)
}

func (decimalDomain) literal(v interface{}, _ Options) string {
	return v.(decimal.Decimal).String()
}

// timeDomain splits at microsecond resolution, giving the remainder to the earliest ranges.
type timeDomain struct{}

func (timeDomain) name() string { return "time" }

func (timeDomain) compare(a, b interface{}) int {
	return a.(time.Time).Compare(b.(time.Time))
}

func (timeDomain) split(lo, hi interface{}, n int) []Range {
	min, max := lo.(time.Time), hi.(time.Time)
	start, end := min.UnixMicro(), max.UnixMicro()
	span := end - start
	if span < int64(n) {
		n = int(span)
	}
	if n < 1 {
		n = 1
	}

	base, rem := span/int64(n), span%int64(n)
	bounds := make([]interface{}, 0, n+1)
	bounds = append(bounds, min)
	cursor := start
	for i := 0; i < n-1; i++ {
		cursor += base
		if int64(i) < rem {
			cursor++
		}
		b := time.UnixMicro(cursor).In(min.Location())
		if b.After(bounds[len(bounds)-1].(time.Time)) && b.Before(max) {
			bounds = append(bounds, b)
		}
	}
	bounds = append(bounds, max)
	return halfOpen(bounds)
}

func (timeDomain) literal(v interface{}, opts Options) string {
	return opts.TimeLiteral(v.(time.Time))
}

// inclusiveUpper rounds an inclusive upper bound up to whole microseconds.
// Literals carry at most microsecond precision, so a truncated maximum would
// fall below rows stored at finer precision.
func (timeDomain) inclusiveUpper(v interface{}) interface{} {
	t := v.(time.Time)
	if r := t.Truncate(time.Microsecond); !r.Equal(t) {
		return r.Add(time.Microsecond)
	}
	return t
}

// halfOpen turns ordered boundaries b0 < b1 < ... < bn into [b0,b1) ... [bn-1,bn).
func halfOpen(bounds []interface{}) []Range {
	ranges := make([]Range, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		ranges = append(ranges, Range{Lower: bounds[i], Upper: bounds[i+1]})
	}
	return ranges
}

// ANSITimestamp renders t as an ANSI SQL timestamp literal with microseconds.
func ANSITimestamp(t time.Time) string {
	return "TIMESTAMP '" + t.Format("2006-01-02 15:04:05.000000") + "'"
}
