// internal/chat/render/dates.go
package render

import (
	"strconv"
	"time"
)

// UnknownDays is emitted when a loan date cannot be parsed. Rendering must
// keep going with partial context instead of failing the turn.
const UnknownDays = "Unknown"

// dateLayouts covers the formats seen in hosted library databases:
// full RFC3339 timestamps, timestamps without zone, and bare dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DaysIssued computes the whole days a book has been out: return − issue
// when the return date is set, otherwise now − issue. Any parse failure
// yields UnknownDays.
func DaysIssued(issueDate, returnDate string, now time.Time) string {
	issue, ok := parseDate(issueDate)
	if !ok {
		return UnknownDays
	}

	end := now
	if returnDate != "" {
		parsed, ok := parseDate(returnDate)
		if !ok {
			return UnknownDays
		}
		end = parsed
	}

	days := int(end.Sub(issue).Hours() / 24)
	return strconv.Itoa(days)
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
