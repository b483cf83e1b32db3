package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday represents a day of the week (0 = Sunday, 1 = Monday, ...)
type Weekday int

const (
	WeekdaySunday    Weekday = 0
	WeekdayMonday    Weekday = 1
	WeekdayTuesday   Weekday = 2
	WeekdayWednesday Weekday = 3
	WeekdayThursday  Weekday = 4
	WeekdayFriday    Weekday = 5
	WeekdaySaturday  Weekday = 6
)

// WeekOrder lists the weekdays Monday first, the order used in keyboards and lists.
var WeekOrder = []Weekday{
	WeekdayMonday, WeekdayTuesday, WeekdayWednesday, WeekdayThursday,
	WeekdayFriday, WeekdaySaturday, WeekdaySunday,
}

func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

func (d Weekday) Valid() bool {
	return d >= WeekdaySunday && d <= WeekdaySaturday
}

func (d Weekday) Time() time.Weekday {
	return time.Weekday(d)
}

// Key is the localization key for the day name, e.g. "day_mon".
func (d Weekday) Key() string {
	if !d.Valid() {
		return "day_unknown"
	}
	return "day_" + strings.ToLower(time.Weekday(d).String()[:3])
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return time.Weekday(d).String()
}

// ParseWeekday accepts the numeric form used in button payloads ("0".."6")
// as well as English names and three-letter abbreviations.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("weekday out of range: %d", n)
		}
		return d, nil
	}
	for d := WeekdaySunday; d <= WeekdaySaturday; d++ {
		name := strings.ToLower(time.Weekday(d).String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %s", s)
}

// DaysUntil returns how many days lie between from and the next d (0 when from is d).
func DaysUntil(from, d Weekday) int {
	return (int(d) - int(from) + 7) % 7
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}
