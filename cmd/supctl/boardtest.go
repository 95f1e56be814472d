package main

import (
	"fmt"
	"io"
	"time"

	"pwrsup-go/hostlink"
)

// calendarCheckGap is how long boardTest waits between the two clock reads.
const calendarCheckGap = 2 * time.Second

// boardTest checks each supervisor function once. It fails if the calendar
// does not advance across calendarCheckGap.
func boardTest(w io.Writer, c *hostlink.Client, now func() time.Time, sleep func(time.Duration)) error {
	fmt.Fprintln(w, "Board tester")

	v, err := c.Version()
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Fprintf(w, "Firmware version: %d.%d\n", v.Major, v.Minor)

	st, err := c.BatteryStatus()
	if err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	fmt.Fprintf(w, "Battery level: %.1f%% (%.3f V)\n", st.Percent, st.Volts)

	fmt.Fprintln(w, "Setting time...")
	if err := c.SetDateTime(now()); err != nil {
		return fmt.Errorf("set time: %w", err)
	}
	first, err := c.DateTime(time.Local)
	if err != nil {
		return fmt.Errorf("read time: %w", err)
	}
	fmt.Fprintln(w, "Time now:", first.Format("2006-01-02 15:04:05"))

	sleep(calendarCheckGap)
	second, err := c.DateTime(time.Local)
	if err != nil {
		return fmt.Errorf("read time: %w", err)
	}
	fmt.Fprintln(w, "Time now:", second.Format("2006-01-02 15:04:05"))
	if !second.After(first) {
		return fmt.Errorf("calendar not running: %v then %v", first, second)
	}

	fmt.Fprintln(w, "LED test: watch green then red")
	if err := c.LEDTest(); err != nil {
		return fmt.Errorf("led test: %w", err)
	}
	fmt.Fprintln(w, "Test successful")
	return nil
}
