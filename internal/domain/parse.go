package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// listDelimiter separates recipient ids and day codes in their stored form.
const listDelimiter = ","

// Weekdays lists the valid codes in calendar order (time.Weekday order is
// Sunday-first; display and toggling use Monday-first).
var Weekdays = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

var (
	ErrBadDay  = errors.New("invalid day code")
	ErrBadTime = errors.New("invalid time, expected HH:MM")
)

// timeRe requires a leading zero: "9:30" is rejected, "09:30" accepted.
var timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// IsWeekday reports whether s is one of the seven weekday codes.
func IsWeekday(s string) bool {
	for _, d := range Weekdays {
		if s == d {
			return true
		}
	}
	return false
}

// WeekdayCode converts a time.Weekday to its three-letter code.
func WeekdayCode(d time.Weekday) string {
	return strings.ToUpper(d.String()[:3])
}

// ParseDays parses a comma-delimited day list ("MON,WED") into validated
// codes, de-duplicating while preserving first-seen order.
func ParseDays(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, listDelimiter) {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if !IsWeekday(code) {
			return nil, fmt.Errorf("%w: %q", ErrBadDay, part)
		}
		dup := false
		for _, have := range out {
			if have == code {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoDays
	}
	return out, nil
}

// JoinList encodes a list into its stored comma-delimited form.
func JoinList(items []string) string {
	return strings.Join(items, listDelimiter)
}

// SplitList decodes a stored comma-delimited list, dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, listDelimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateTime checks a 24-hour "HH:MM" string (leading zero required).
func ValidateTime(s string) error {
	if !timeRe.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return nil
}

// MinutesOfDay converts a validated "HH:MM" to minutes since midnight.
func MinutesOfDay(s string) (int, error) {
	if err := ValidateTime(s); err != nil {
		return 0, err
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m, nil
}
