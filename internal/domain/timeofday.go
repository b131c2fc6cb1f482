package domain

import (
	"fmt"
	"strings"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// TryParseTimeOfDay parses the canonical "HH:MM" form. Anything else, including
// out-of-range hours or minutes, reports ok=false rather than an error so that
// callers can decide what a missing value means for them.
func TryParseTimeOfDay(s string) (TimeOfDay, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h, ok := twoDigits(s[0], s[1])
	if !ok || h > 23 {
		return 0, false
	}
	m, ok := twoDigits(s[3], s[4])
	if !ok || m > 59 {
		return 0, false
	}
	return NewTimeOfDay(h, m), true
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func (t TimeOfDay) Minutes() int {
	return int(t)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// FormatTimes renders a slice of times in canonical form.
func FormatTimes(ts []TimeOfDay) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return out
}

// Overlaps reports whether the half-open ranges [aStart,aEnd) and [bStart,bEnd)
// intersect. Ranges that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}
