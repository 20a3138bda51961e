package lineage

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and input format of validity dates.
const DateLayout = "2006-01-02"

// Epoch is the valid_from of the first version of any lineage.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return t, nil
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar day by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// FormatDate renders a date in DateLayout; nil renders as empty.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
