package application

import (
	"fmt"
	"strings"
	"time"
)

// ParseWeekdays parses a comma-separated list of English weekday names, such
// as "saturday,sunday". Three-letter abbreviations are accepted.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if name == full || name == full[:3] {
				days = append(days, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
	}
	return days, nil
}

// IsNonWorkingDay reports whether now, viewed in loc, falls on one of days.
func IsNonWorkingDay(now time.Time, loc *time.Location, days []time.Weekday) bool {
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc).Weekday()
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// ParseLogicalTime parses an operator-supplied logical "now". It accepts
// RFC 3339 timestamps and bare dates; a bare date means midnight in loc.
func ParseLogicalTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
}
