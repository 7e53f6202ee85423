package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// AbsoluteTimeLayout renders timestamps older than a day.
const AbsoluteTimeLayout = "2006-01-02 15:04:05"

// HumanizeSince renders how long ago last was, relative to now. Every unit
// is floored: 59s is "59 seconds ago" and 60s is "1 minutes ago". A zero
// last renders "never"; anything a day or older renders as local time.
func HumanizeSince(last, now time.Time) string {
	if last.IsZero() {
		return "never"
	}
	seconds := int64(math.Floor(now.Sub(last).Seconds()))
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%d seconds ago", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d hours ago", hours)
	}
	return last.Local().Format(AbsoluteTimeLayout)
}

// FormatDuration renders d as "1h 2m 3s", dropping zero units.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0s"
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// FormatDataRate renders a bytes-per-second rate with binary units.
func FormatDataRate(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 || math.IsNaN(bytesPerSecond) {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}
