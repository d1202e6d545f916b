package logger

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// Preview lists at most limit values and counts the rest, e.g. "a, b (+3)".
func Preview(values []string, limit int) string {
	limit = max(limit, 0)
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return strings.TrimSpace(fmt.Sprintf("%s (+%d)", strings.Join(values[:limit], ", "), len(values)-limit))
}

// SanitizeLimit drops control and format runes, except tab and newline, and
// cuts the result to max runes. User input passes through it before logging.
func SanitizeLimit(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
