package connect

import "time"

// Named durations for request timeouts and delegation windows.
const (
	FiveMinutes = 5 * time.Minute
	OneHour     = time.Hour
	OneDay      = 24 * time.Hour
	OneWeek     = 7 * OneDay
	OneMonth    = 30 * OneDay
	OneYear     = 365 * OneDay

	// DefaultTimeout bounds every request unless Config.Timeout is set.
	DefaultTimeout = FiveMinutes

	// ClockSkew is subtracted from the subscription start so peers whose
	// clocks lag behind are still heard. Stale envelopes are rejected by
	// request id and sender, not by timestamp.
	ClockSkew = 2 * time.Minute
)
