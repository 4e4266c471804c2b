package partition

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

var logicalStartTimeMacro = regexp.MustCompile(`\$\{logicalStartTime\(([^)]*)\)\}`)

// ExpandMacros replaces ${logicalStartTime(format[,offset[,timeZone]])} with
// the logical time minus offset, rendered with format. With no arguments the
// macro expands to epoch milliseconds.
func ExpandMacros(s string, logical time.Time) (string, error) {
	var firstErr error
	out := logicalStartTimeMacro.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		v, err := expandLogicalStartTime(logicalStartTimeMacro.FindStringSubmatch(m)[1], logical)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func expandLogicalStartTime(args string, logical time.Time) (string, error) {
	parts := strings.Split(args, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 3 {
		return "", errors.Newf(errors.ErrorTypeConfig, "logicalStartTime takes at most 3 arguments, got %q", args)
	}

	t := logical
	if len(parts) >= 2 {
		offset, err := ParseOffset(parts[1])
		if err != nil {
			return "", err
		}
		t = t.Add(-offset)
	}
	if parts[0] == "" {
		return strconv.FormatInt(t.UnixMilli(), 10), nil
	}

	zone := ""
	if len(parts) == 3 {
		zone = parts[2]
	}
	loc, _ := ResolveZone(zone)
	format, err := CompileDateFormat(parts[0])
	if err != nil {
		return "", err
	}
	return format.Format(t.In(loc)), nil
}
