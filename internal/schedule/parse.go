package schedule

import (
	"fmt"
	"strings"
	"time"
)

// ParseInstant parses the date/time strings callers and models send. It handles:
//   - RFC3339 with offset or Z: "2024-01-15T14:00:00-05:00"
//   - naive ISO datetimes: "2024-01-15T14:00:00", "2024-01-15T14:00", treated as local to loc
//   - "2024-01-15 14:00" style, treated as local to loc
//
// Natural-language phrases ("next Tuesday at 3") are not parsed here; they go to the agent.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("schedule: empty date/time")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schedule: cannot parse date/time %q", raw)
}
