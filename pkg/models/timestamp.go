package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout is RFC 3339 with exactly three fractional digits, the shape
// browsers produce with toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON keeps the millisecond part even when it is zero. Decoding needs
// no counterpart: time.Time already accepts any RFC 3339 fraction.
func (s IndexSeries) MarshalJSON() ([]byte, error) {
	stamps := make([]string, len(s.Timestamps))
	for i, t := range s.Timestamps {
		stamps[i] = FormatTimestamp(t)
	}
	return json.Marshal(struct {
		Timestamps []string  `json:"timestamps"`
		Prices     []float64 `json:"prices"`
	}{stamps, s.Prices})
}
