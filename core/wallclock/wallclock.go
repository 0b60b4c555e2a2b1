// Package wallclock is the single boundary between school-local wall-clock values
// (a YYYY-MM-DD date and an HH:MM time in an IANA zone) and absolute UTC instants.
package wallclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultZone = "Asia/Ho_Chi_Minh"
	DateLayout  = "2006-01-02"

	MinutesPerDay = 24 * 60
)

var (
	ErrUnknownZone  = errors.New("unknown timezone")
	ErrInvalidClock = errors.New("invalid time of day; expected HH:MM")
	ErrInvalidDate  = errors.New("invalid date; expected YYYY-MM-DD")
)

// Clock is a time of day in minutes since midnight. MinutesPerDay is allowed as an end bound.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses HH:MM or HH:MM:SS; seconds are dropped.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Wrap(ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, errors.Wrap(ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, errors.Wrap(ErrInvalidClock, s)
	}
	if h == 24 && m != 0 {
		return 0, errors.Wrap(ErrInvalidClock, s)
	}
	return NewClock(h, m), nil
}

// MustParseClock is ParseClock for constants and tests.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) Valid() bool { return c >= 0 && c <= MinutesPerDay }

// LoadZone resolves an IANA zone name; empty names resolve to DefaultZone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrap(ErrUnknownZone, name)
	}
	return loc, nil
}

// ParseDate parses a civil date. The result is midnight UTC and only meaningful as a calendar day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidDate, s)
	}
	return d, nil
}

// Instant converts a wall-clock date and time in loc to an absolute UTC instant.
// 24:00 is the next day's midnight.
func Instant(date string, clock Clock, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if !clock.Valid() {
		return time.Time{}, errors.Wrap(ErrInvalidClock, clock.String())
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	return t.UTC(), nil
}

// ParseInstant is Instant over a raw HH:MM string.
func ParseInstant(date, clock string, loc *time.Location) (time.Time, error) {
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return Instant(date, c, loc)
}

// ClockIn returns the wall-clock time of t in loc.
func ClockIn(t time.Time, loc *time.Location) Clock {
	lt := t.In(loc)
	return NewClock(lt.Hour(), lt.Minute())
}

// DateIn returns the calendar date of t in loc.
func DateIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// FormatRange renders "HH:MM - HH:MM" in loc.
func FormatRange(start, end time.Time, loc *time.Location) string {
	return ClockIn(start, loc).String() + " - " + ClockIn(end, loc).String()
}

// Minutes returns the whole minutes between start and end, 0 when end is not after start.
func Minutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// WeekStart returns the Monday of the week holding date.
func WeekStart(date time.Time) time.Time {
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}
