package domain

import "time"

// Timestamps are stored as RFC3339 UTC strings at second precision. The
// fixed width keeps the store's string comparison in chronological order.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
