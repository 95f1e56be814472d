package platform

import "time"

// SystemClock is the monotonic tick source backed by the Go runtime clock.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

// Millis wraps every ~49.7 days, like the hardware tick it replaces.
func (c *SystemClock) Millis() uint32 { return uint32(time.Since(c.start).Milliseconds()) }

func (c *SystemClock) Sleep(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }
