package consumption

import "time"

// dayFormat is the storage encoding of a bucket's day.
const dayFormat = "2006-01-02"

// Bucket identifies one hour of one UTC day.
type Bucket struct {
	Day  time.Time // midnight UTC of the bucket's day
	Hour int       // 0-23
}

// BucketOf maps a measurement timestamp to its bucket. The timestamp is
// converted to UTC first, so buckets are stable regardless of the zone the
// producer stamped.
func BucketOf(ts time.Time) Bucket {
	utc := ts.UTC()
	return Bucket{
		Day:  time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC),
		Hour: utc.Hour(),
	}
}

// DayKey returns the day in storage form (YYYY-MM-DD).
func (b Bucket) DayKey() string {
	return b.Day.Format(dayFormat)
}

// ParseDay parses a YYYY-MM-DD day string into midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dayFormat, s)
}
