package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LastClock is the latest game time of day. Times past midnight run on past
// 2400 until the day ends at 2600.
const LastClock = 2600

// ParseClock parses a game time of day into HHMM form.
// Supports two formats:
//   - "22:00", "6:30", "25:10" (after midnight, before the day ends)
//   - "2200", "630"
//
// Minutes must be a multiple of ten, the game clock's resolution.
func ParseClock(spec string) (int, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time of day")
	}

	var hours, minutes int
	var err error
	if h, m, ok := strings.Cut(spec, ":"); ok {
		if hours, err = strconv.Atoi(h); err != nil {
			return 0, fmt.Errorf("invalid time of day: %s", spec)
		}
		if len(m) != 2 {
			return 0, fmt.Errorf("invalid time of day: %s (use HH:MM)", spec)
		}
		if minutes, err = strconv.Atoi(m); err != nil {
			return 0, fmt.Errorf("invalid time of day: %s", spec)
		}
	} else {
		n, err := strconv.Atoi(spec)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day: %s (use '22:00' or '2200')", spec)
		}
		hours, minutes = n/100, n%100
	}

	if hours < 0 || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("invalid time of day: %s", spec)
	}
	if minutes%10 != 0 {
		return 0, fmt.Errorf("invalid time of day: %s (minutes must be a multiple of 10)", spec)
	}
	clock := hours*100 + minutes
	if clock >= LastClock {
		return 0, fmt.Errorf("time of day %s is past the end of the day (26:00)", spec)
	}
	return clock, nil
}

// FormatClock renders an HHMM time of day as "HH:MM".
func FormatClock(clock int) string {
	return fmt.Sprintf("%02d:%02d", clock/100, clock%100)
}

// ParseInterval parses a positive Go duration such as "100ms" or "7s".
func ParseInterval(spec string) (time.Duration, error) {
	d, err := time.ParseDuration(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid interval: %s (use a duration like '100ms' or '7s')", spec)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", spec)
	}
	return d, nil
}
