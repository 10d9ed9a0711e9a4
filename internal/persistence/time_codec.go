package persistence

import "time"

// Timestamps are stored as unix milliseconds; zero times map to 0 so
// unset values stay distinguishable after a round trip.

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
