// Package calendar keeps wall-clock time and date in software from a
// millisecond tick. It backs the supervisor's calendar on boards whose RTC is
// not reachable from Go.
package calendar

import (
	"sync"

	"pwrsup-go/errcode"
	"pwrsup-go/types"
)

// Ticker is a free-running 32-bit millisecond counter.
type Ticker interface {
	Millis() uint32
}

const secsPerDay = 24 * 60 * 60

// Clock counts seconds since midnight plus a day/month/year date. Years are
// two digits, 00..99 meaning 2000..2099.
type Clock struct {
	mu  sync.Mutex
	src Ticker

	last  uint32 // tick at the previous advance
	carry uint32 // milliseconds not yet folded into secs
	secs  uint32

	day, month, year uint8
}

// New returns a clock at 00:00:00 on 01/01/00.
func New(src Ticker) *Clock {
	return &Clock{src: src, last: src.Millis(), day: 1, month: 1}
}

// Time returns the current time of day.
func (c *Clock) Time() (types.TimeOfDay, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return types.TimeOfDay{
		Hour:   uint8(c.secs / 3600),
		Minute: uint8(c.secs / 60 % 60),
		Second: uint8(c.secs % 60),
	}, nil
}

// SetTime replaces the time of day. The date is left as is.
func (c *Clock) SetTime(t types.TimeOfDay) error {
	switch {
	case t.Hour > 23:
		return &errcode.E{C: errcode.InvalidParams, Op: "set_time", Msg: "bad hour"}
	case t.Minute > 59:
		return &errcode.E{C: errcode.InvalidParams, Op: "set_time", Msg: "bad minute"}
	case t.Second > 59:
		return &errcode.E{C: errcode.InvalidParams, Op: "set_time", Msg: "bad second"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.secs = uint32(t.Hour)*3600 + uint32(t.Minute)*60 + uint32(t.Second)
	c.carry = 0
	return nil
}

// Date returns the current calendar date.
func (c *Clock) Date() (types.Date, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return types.Date{Day: c.day, Month: c.month, Year: c.year}, nil
}

// SetDate replaces the date. The time of day is left as is.
func (c *Clock) SetDate(d types.Date) error {
	switch {
	case d.Year > 99:
		return &errcode.E{C: errcode.InvalidParams, Op: "set_date", Msg: "bad year"}
	case d.Month < 1 || d.Month > 12:
		return &errcode.E{C: errcode.InvalidParams, Op: "set_date", Msg: "bad month"}
	case d.Day < 1 || d.Day > DaysIn(d.Month, d.Year):
		return &errcode.E{C: errcode.InvalidParams, Op: "set_date", Msg: "bad day"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.day, c.month, c.year = d.Day, d.Month, d.Year
	return nil
}

// advance folds ticks elapsed since the last call into the clock. Unsigned
// subtraction absorbs one counter wrap between calls.
func (c *Clock) advance() {
	now := c.src.Millis()
	c.carry += now - c.last
	c.last = now

	c.secs += c.carry / 1000
	c.carry %= 1000
	for c.secs >= secsPerDay {
		c.secs -= secsPerDay
		c.nextDay()
	}
}

func (c *Clock) nextDay() {
	if c.day < DaysIn(c.month, c.year) {
		c.day++
		return
	}
	c.day = 1
	if c.month < 12 {
		c.month++
		return
	}
	c.month = 1
	c.year = (c.year + 1) % 100
}

// DaysIn returns the length of month in the given two-digit year.
func DaysIn(month, year uint8) uint8 {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// IsLeap reports whether 2000+year is a leap year. Every year divisible by
// four in 2000..2099 is one, 2000 included.
func IsLeap(year uint8) bool { return year%4 == 0 }
