package brain

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is ISO-8601 UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// newRandom is swappable so tests can force ID collisions.
var newRandom = func() [16]byte { return uuid.New() }

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return FormatTime(timeNow())
}

// FormatTime formats t as UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp. RFC 3339 is accepted as well.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// NewID returns prefix + "_" + 12 lower-case hex characters.
func NewID(prefix string) string {
	r := newRandom()
	return prefix + "_" + hex.EncodeToString(r[:6])
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
