package partition

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var customZonePattern = regexp.MustCompile(`^(?:GMT|UTC)([+-])([0-9]{1,2})(?::?([0-9]{2}))?$`)

// ResolveZone returns the named location. Blank and unknown names resolve to
// UTC, and the second result reports whether the fallback was taken.
func ResolveZone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, false
	}
	if m := customZonePattern.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours <= 23 && minutes <= 59 {
			offset := hours*3600 + minutes*60
			if m[1] == "-" {
				offset = -offset
			}
			return time.FixedZone(name, offset), false
		}
		return time.UTC, true
	}
	if name == "GMT" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}
