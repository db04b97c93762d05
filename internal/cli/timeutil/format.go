// Package timeutil formats times and durations for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is used for remote timestamps shown in local time.
const LocalTimeFormat = "2006-01-02 15:04:05"

// FormatModTime returns t in local time, or "-" when the server reported
// no timestamp.
func FormatModTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatElapsed renders d compactly: "850ms", "2.4s", "3m 5s", "1h 2m".
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatRate renders a transfer rate for n bytes moved in d.
func FormatRate(n int64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	perSec := float64(n) / d.Seconds()
	switch {
	case perSec >= 1<<20:
		return fmt.Sprintf("%.1f MiB/s", perSec/(1<<20))
	case perSec >= 1<<10:
		return fmt.Sprintf("%.1f KiB/s", perSec/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", perSec)
	}
}
