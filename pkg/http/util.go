package http

import (
	"time"

	xutil "SignalBT/pkg/util"
)

// ParseTime accepts RFC3339, a date, a date-time or unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseWindow resolves from/to query values; see util.ParseWindow.
func ParseWindow(from, to string, span time.Duration) (time.Time, time.Time, error) {
	return xutil.ParseWindow(from, to, time.Now(), span)
}
