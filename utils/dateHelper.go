package utils

import (
	"strings"
	"time"
)

// CanonicalDateTimeLayout is how DATETIME columns are written by the original UI and store.
const CanonicalDateTimeLayout = "2006-01-02 15:04:05"

var dateTimeLayouts = []string{
	CanonicalDateTimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime accepts the canonical "YYYY-MM-DD HH:MM:SS" form or an ISO-8601 string.
// Values without a zone are read as UTC. The result is UTC, truncated to seconds.
func ParseDateTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Truncate(time.Second), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return v.UTC().Truncate(time.Second), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UTC().Truncate(time.Second), true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeDateLenient returns the parsed time, or nil when the value is empty or unparseable.
// A bad date never fails the caller's update; it is stored as NULL.
func NormalizeDateLenient(value any) any {
	if t, ok := ParseDateTime(value); ok {
		return t
	}
	return nil
}

// NormalizeDateStrict returns the parsed time, or nil for empty values.
// ok is false when a non-empty value does not parse.
func NormalizeDateStrict(value any) (any, bool) {
	if value == nil {
		return nil, true
	}
	if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
		return nil, true
	}
	if t, parsed := ParseDateTime(value); parsed {
		return t, true
	}
	return nil, false
}
