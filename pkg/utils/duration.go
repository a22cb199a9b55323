// Package utils provides small formatting helpers shared across the CLI.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration parses a duration string, extending time.ParseDuration with
// a "d" (days) unit for the CLI's timeout.* configuration settings.
func ParseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// FormatDuration renders d as a compact, space-separated "1h 2m 3s"-style
// string for batch summaries. Every zero-valued unit is omitted ("0s" for a
// duration under one second), and sub-second remainders are dropped.
func FormatDuration(d time.Duration) string {
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	d %= time.Minute
	seconds := d / time.Second

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

// TruncateString shortens s to at most maxLen runes, replacing the tail
// with "..." when it doesn't fit, for single-line log/status rendering.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
