package prayer

import (
	"strconv"
	"strings"
	"time"
)

// ParseClock parses a 24-hour "HH:MM" value into an instant on date's calendar
// day, in date's location. Surrounding whitespace is ignored.
func ParseClock(date time.Time, raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || hh == "" || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return time.Time{}, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, false
	}
	y, mon, d := date.Date()
	return time.Date(y, mon, d, h, m, 0, 0, date.Location()), true
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
