package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (with or without fraction), a plain date, unix seconds
// or unix milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		// 1e11 seconds is year 5138; anything larger is milliseconds.
		if ts > 1e11 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseRange parses a from/to pair and rejects empty or inverted ranges.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, ok := ParseTime(from)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from %q", from)
	}
	t, ok := ParseTime(to)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to %q", to)
	}
	if !t.After(f) {
		return time.Time{}, time.Time{}, fmt.Errorf("to %s must be after from %s", to, from)
	}
	return f, t, nil
}

// TimeframeDuration maps a timeframe label to its bar duration; unknown labels map to one minute.
func TimeframeDuration(tf string) time.Duration {
	switch tf {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// AlignFromTo rounds the time range down to bar boundaries for the timeframe.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	d := TimeframeDuration(tf)
	return from.Truncate(d), to.Truncate(d)
}
