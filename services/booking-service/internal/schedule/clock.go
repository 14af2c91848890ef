package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseClock parses a wall-clock "HH:MM" or "HH:MM:SS" value into minutes
// since midnight. Hours up to 23, minutes and seconds up to 59.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
		nums[i] = n
	}
	if nums[0] > 23 || nums[1] > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if len(nums) == 3 && nums[2] > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return nums[0]*60 + nums[1], nil
}

// FormatClock renders minutes since midnight as "HH:MM". Values past
// midnight wrap onto the following day.
func FormatClock(min int) string {
	min = ((min % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// Duration returns the length in minutes of the interval from start to end,
// both minutes since midnight. end <= start is not an error: the interval
// wraps past midnight into the following day, so start == end means a full
// 24-hour window, never a zero-length one.
func Duration(startMin, endMin int) (minutes int, overnight bool) {
	if endMin > startMin {
		return endMin - startMin, false
	}
	return endMin + minutesPerDay - startMin, true
}

// FormatDuration renders whole hours plus remainder minutes, e.g. 510 ->
// "8h 30m", 480 -> "8h". Overnight intervals get an "(overnight)" suffix.
// The admin screens and the public slot API both render through here so the
// two never disagree.
func FormatDuration(minutes int, overnight bool) string {
	h := minutes / 60
	m := minutes % 60

	var out string
	switch {
	case h > 0 && m > 0:
		out = fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		out = fmt.Sprintf("%dh", h)
	default:
		out = fmt.Sprintf("%dm", m)
	}
	if overnight {
		out += " (overnight)"
	}
	return out
}
