package convlog

import (
	"fmt"
	"strings"
	"time"

	"semantic-memory/internal/memerr"
)

// humanLayout is the persisted timestamp format, e.g. "Tuesday, January 02, 2024 at 03:04 PM UTC".
const humanLayout = "Monday, January 02, 2006 at 03:04 PM MST"

// parseLayouts are tried in order. Zoneless layouts are interpreted in the reference zone.
var parseLayouts = []string{
	humanLayout,
	"Monday, January 02, 2006 at 15:04 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateTime,
}

// FormatTimestamp renders t in the persisted human-readable format, in t's own location.
func FormatTimestamp(t time.Time) string {
	return t.Format(humanLayout)
}

// ParseTimestamp parses any accepted timestamp format. The result is expressed in loc.
// Unparseable input yields a *memerr.ParseError.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &memerr.ParseError{Source: "timestamp", Index: -1, Err: fmt.Errorf("empty timestamp")}
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, &memerr.ParseError{Source: "timestamp", Index: -1, Err: fmt.Errorf("unrecognised format %q", s)}
}
