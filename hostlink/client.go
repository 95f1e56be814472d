// Package hostlink is the host-side client for the supervisor's 4-byte
// command link.
//
// Every exchange clocks one request in and the previously prepared response
// out. Read-style commands therefore take two exchanges: the command, then a
// no-op that collects its answer.
package hostlink

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"pwrsup-go/errcode"
	"pwrsup-go/supervisor"
	"pwrsup-go/types"
)

// Exchanger moves one whole frame each way; r may be nil for write-only
// exchanges. Serial and SPI implement it.
type Exchanger interface {
	Tx(w, r []byte) error
}

// DefaultSettle is the pause between a command and its read-back.
const DefaultSettle = time.Millisecond

// Client serialises exchanges on one link.
type Client struct {
	mu     sync.Mutex
	x      Exchanger
	settle time.Duration
	sleep  func(time.Duration)
}

type Option func(*Client)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option { return func(c *Client) { c.settle = d } }

// WithSleep replaces time.Sleep, for tests.
func WithSleep(fn func(time.Duration)) Option { return func(c *Client) { c.sleep = fn } }

func New(x Exchanger, opts ...Option) *Client {
	c := &Client{x: x, settle: DefaultSettle, sleep: time.Sleep}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) exchange(req supervisor.Frame) (supervisor.Frame, error) {
	var resp supervisor.Frame
	if err := c.x.Tx(req[:], resp[:]); err != nil {
		return resp, fmt.Errorf("exchange %v: %w", supervisor.Command(req[0]), err)
	}
	glog.V(2).Infof("TX % x RX % x", req[:], resp[:])
	return resp, nil
}

// send issues a command whose response is not needed.
func (c *Client) send(cmd supervisor.Command, a1, a2, a3 byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.exchange(supervisor.Frame{byte(cmd), a1, a2, a3})
	return err
}

// query issues cmd and returns the response it prepared.
func (c *Client) query(cmd supervisor.Command) (supervisor.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.exchange(supervisor.Frame{byte(cmd)}); err != nil {
		return supervisor.Frame{}, err
	}
	if c.settle > 0 {
		c.sleep(c.settle)
	}
	return c.exchange(supervisor.Frame{byte(supervisor.CmdNop)})
}

// Battery returns the raw 12-bit battery sample.
func (c *Client) Battery() (uint16, error) {
	resp, err := c.query(supervisor.CmdBattery)
	if err != nil {
		return 0, err
	}
	return uint16(resp[0])<<8 | uint16(resp[1]), nil
}

// BatteryStatus is a decoded battery reading.
type BatteryStatus struct {
	Raw     uint16
	Volts   float64
	Percent float64
}

func (c *Client) BatteryStatus() (BatteryStatus, error) {
	raw, err := c.Battery()
	if err != nil {
		return BatteryStatus{}, err
	}
	v := Volts(raw)
	return BatteryStatus{Raw: raw, Volts: v, Percent: Percent(v)}, nil
}

func (c *Client) Time() (types.TimeOfDay, error) {
	resp, err := c.query(supervisor.CmdGetTime)
	if err != nil {
		return types.TimeOfDay{}, err
	}
	return types.TimeOfDay{Hour: resp[0], Minute: resp[1], Second: resp[2]}, nil
}

func (c *Client) Date() (types.Date, error) {
	resp, err := c.query(supervisor.CmdGetDate)
	if err != nil {
		return types.Date{}, err
	}
	return types.Date{Day: resp[0], Month: resp[1], Year: resp[2]}, nil
}

// DateTime reads date then time and combines them in loc. The two reads are
// separate exchanges, so a midnight rollover between them is not detected.
func (c *Client) DateTime(loc *time.Location) (time.Time, error) {
	d, err := c.Date()
	if err != nil {
		return time.Time{}, err
	}
	t, err := c.Time()
	if err != nil {
		return time.Time{}, err
	}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return time.Time{}, &errcode.E{C: errcode.Error, Op: "date_time", Msg: "device returned an invalid calendar"}
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(2000+int(d.Year), time.Month(d.Month), int(d.Day),
		int(t.Hour), int(t.Minute), int(t.Second), 0, loc), nil
}

func (c *Client) SetTime(t types.TimeOfDay) error {
	return c.send(supervisor.CmdSetTime, t.Hour, t.Minute, t.Second)
}

func (c *Client) SetDate(d types.Date) error {
	return c.send(supervisor.CmdSetDate, d.Day, d.Month, d.Year)
}

// SetDateTime writes t's wall-clock fields. The device stores a two-digit
// year, so t must fall in 2000..2099.
func (c *Client) SetDateTime(t time.Time) error {
	if t.Year() < 2000 || t.Year() > 2099 {
		return &errcode.E{C: errcode.InvalidParams, Op: "set_date_time", Msg: "year outside 2000..2099"}
	}
	if err := c.SetTime(types.TimeOfDay{Hour: uint8(t.Hour()), Minute: uint8(t.Minute()), Second: uint8(t.Second())}); err != nil {
		return err
	}
	return c.SetDate(types.Date{Day: uint8(t.Day()), Month: uint8(t.Month()), Year: uint8(t.Year() - 2000)})
}

// Shutdown arms the deferred power-off. The host has
// supervisor.ShutdownDwellMs to halt cleanly.
func (c *Client) Shutdown() error { return c.send(supervisor.CmdShutdown, 0, 0, 0) }

// Restart arms the deferred power cycle.
func (c *Client) Restart() error { return c.send(supervisor.CmdRestart, 0, 0, 0) }

// LEDTest runs the indicator self-test and waits for it to finish; the device
// services no exchanges meanwhile.
func (c *Client) LEDTest() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.exchange(supervisor.Frame{byte(supervisor.CmdLEDTest)}); err != nil {
		return err
	}
	c.sleep(2 * time.Duration(supervisor.LEDTestStepMs) * time.Millisecond)
	return nil
}

func (c *Client) Version() (types.Version, error) {
	resp, err := c.query(supervisor.CmdFirmwareVers)
	if err != nil {
		return types.Version{}, err
	}
	return types.Version{Major: resp[0], Minor: resp[1]}, nil
}
