package validate

import (
	"strings"
	"time"
)

// timestampLayouts covers the ISO-ish formats seen in source exports. Order
// matters: more specific layouts first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"2006-01-02",
	"1/2/2006",
}

// ParseTimestamp parses a source timestamp string. ok is false for blank,
// placeholder, or unrecognized values; callers fall back rather than fail.
func ParseTimestamp(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	if IsEmptyValue(trimmed) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
