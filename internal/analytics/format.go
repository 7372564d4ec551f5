package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TimestampLayout is how interaction and session times are displayed.
const TimestampLayout = "Jan 2, 2006 15:04:05"

var numberPrinter = message.NewPrinter(language.English)

// FormatDuration renders d with its two most significant units: "1h 2m",
// "1m 5s" or "42s". Fractions are truncated and negative durations render as "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatTokenCount abbreviates token counts: 2500000 → "2.5M", 1500 → "1.5K",
// 42 → "42".
func FormatTokenCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatNumber renders n with thousands separators.
func FormatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

// FormatTimestamp renders an epoch-millisecond timestamp in the given zone.
// A zero timestamp renders as "-".
func FormatTimestamp(ms int64, loc *time.Location) string {
	if ms == 0 {
		return "-"
	}
	return FormatTime(time.UnixMilli(ms), loc)
}

// FormatTime renders t in the given zone, UTC when loc is nil.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// TitleCase capitalizes every word and lower-cases the rest of it:
// "john DOE" → "John Doe".
func TitleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return cases.Title(language.Und).String(s)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
