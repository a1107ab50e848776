package post

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParsePublished parses a free-form publication date. Zone offsets are
// dropped: the wall-clock reading is kept and placed in loc, so dates from
// sources in different zones compare by what the source printed. A nil loc
// means time.Local.
func ParsePublished(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), true
}

// FormatKoreanDate renders a date as "YYYY년 MM월 DD일".
func FormatKoreanDate(t time.Time) string {
	return t.Format("2006년 01월 02일")
}
