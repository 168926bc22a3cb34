package normalize

import "time"

const isoLayout = "2006-01-02T15:04:05.000Z"

// DayKey identifies the calendar day t falls on in loc, as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(time.DateOnly)
}

// ISO renders an epoch-millisecond timestamp as UTC ISO-8601. Non-positive
// timestamps render empty.
func ISO(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

func timeOf(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
