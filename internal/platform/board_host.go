//go:build !rp2040 && !rp2350

package platform

import (
	"context"
	"time"

	"pwrsup-go/calendar"
	"pwrsup-go/supervisor"
)

// SimSample is the battery reading the simulator starts with (about 3.8 V).
const SimSample uint16 = 2400

// TestBoard exposes the concrete fakes behind a host Board.
type TestBoard struct {
	*Board

	HostEnable *FakePin
	LEDRed     *FakePin
	LEDGreen   *FakePin
	USBSense   *FakePin
	ADC        *FakeADC
	Tick       *FakeClock
	Standby    *FakeStandby
	Link       *FakeLink
	Calendar   *calendar.Clock
}

// NewTestBoard returns a board on a manual tick with no battery timer; tests
// raise EventBatteryTick themselves.
func NewTestBoard() *TestBoard {
	tick := NewFakeClock(0)
	tb := newFakes(tick)
	tb.Tick = tick
	tb.Board = tb.board("test", tick, 0)
	return tb
}

// NewSimBoard returns the fakes on the real clock with no battery timer, so
// the calendar runs while the caller steps the supervisor itself. Tick is nil.
func NewSimBoard() *TestBoard {
	clk := NewSystemClock()
	tb := newFakes(clk)
	tb.Board = tb.board("sim", clk, 0)
	return tb
}

// New returns the host simulator: fake pins and link on the real clock, with
// the battery timer running at the reference period.
func New() (*Board, error) {
	tb := NewSimBoard()
	tb.Name = "host-sim"
	tb.BatteryPeriod = supervisor.BatteryPeriod
	return tb.Board, nil
}

func newFakes(clk calendar.Ticker) *TestBoard {
	return &TestBoard{
		HostEnable: NewFakePin("host_en"),
		LEDRed:     NewFakePin("led_red"),
		LEDGreen:   NewFakePin("led_green"),
		USBSense:   NewFakePin("usb_sense"),
		ADC:        NewFakeADC(SimSample),
		Standby:    &FakeStandby{},
		Link:       &FakeLink{},
		Calendar:   calendar.New(clk),
	}
}

func (tb *TestBoard) board(name string, clk supervisor.Clock, period time.Duration) *Board {
	_ = tb.LEDRed.ConfigureOutput(true)
	_ = tb.LEDGreen.ConfigureOutput(true)
	_ = tb.USBSense.ConfigureInput(supervisor.PullDown)
	tb.LEDRed.ResetHistory()
	tb.LEDGreen.ResetHistory()

	b := &Board{
		Peripherals: supervisor.Peripherals{
			HostEnable: tb.HostEnable,
			LEDRed:     tb.LEDRed,
			LEDGreen:   tb.LEDGreen,
			USBSense:   tb.USBSense,
			ADC:        tb.ADC,
			Clock:      clk,
			Calendar:   tb.Calendar,
			Standby:    tb.Standby,
			Link:       tb.Link,
		},
		Name:          name,
		BatteryPeriod: period,
	}
	b.attach = func(ctx context.Context, s *supervisor.Supervisor) error {
		if err := tb.USBSense.SetIRQ(EdgeBoth, func() { s.UsbEdge(tb.USBSense.Get()) }); err != nil {
			return err
		}
		tb.Link.hook(s.ChipSelect, func() { s.Raise(supervisor.EventTransferComplete) })
		startTicker(ctx, s, b.BatteryPeriod)
		go func() {
			<-ctx.Done()
			_ = tb.USBSense.ClearIRQ()
		}()
		return nil
	}
	return b
}
