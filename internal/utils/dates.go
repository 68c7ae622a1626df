package utils

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseWindow parses an inclusive date range. A date-only start means the
// beginning of that day in UTC; a date-only end means its last second.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	s, err := parseBound(start, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate: %w", err)
	}
	e, err := parseBound(end, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate: %w", err)
	}
	if s.After(e) {
		return time.Time{}, time.Time{}, fmt.Errorf("startDate %s is after endDate %s", start, end)
	}
	return s, e, nil
}

func parseBound(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Second), nil
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", v)
	}
	return t.UTC(), nil
}
