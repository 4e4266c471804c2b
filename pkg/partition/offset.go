package partition

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

var offsetPattern = regexp.MustCompile(`^([0-9]+)([smhd])$`)

var offsetUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseOffset parses "<integer><unit>" with unit s, m, h or d. An empty string is zero.
func ParseOffset(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	m := offsetPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Newf(errors.ErrorTypeValidation,
			"invalid partition offset %q: expected <integer><s|m|h|d>, e.g. 90m or 1d", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "invalid partition offset "+strconv.Quote(s))
	}
	unit := offsetUnits[m[2]]
	if n > int64(math.MaxInt64/unit) {
		return 0, errors.Newf(errors.ErrorTypeValidation, "partition offset %q is too large", s)
	}
	return time.Duration(n) * unit, nil
}
