//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"pwrsup-go/calendar"
	"pwrsup-go/supervisor"
)

// Pico pin map.
const (
	pinHostEnable = machine.GP2
	pinUSBSense   = machine.GP3
	pinLEDRed     = machine.GP4
	pinLEDGreen   = machine.GP5
	pinBattery    = machine.ADC0 // GP26, pack through a 1:2 divider
	pinLinkTX     = machine.GP0
	pinLinkRX     = machine.GP1

	linkBaud = 115200
	// A frame whose bytes are further apart than this is discarded.
	linkFrameGap = 20 * time.Millisecond
)

// New configures the Pico peripherals. Any failure is a configuration error
// and the caller is expected to trap.
func New() (*Board, error) {
	red := &rp2Pin{p: pinLEDRed}
	green := &rp2Pin{p: pinLEDGreen}
	usb := &rp2Pin{p: pinUSBSense}
	if err := red.ConfigureOutput(true); err != nil {
		return nil, err
	}
	if err := green.ConfigureOutput(true); err != nil {
		return nil, err
	}
	if err := usb.ConfigureInput(supervisor.PullDown); err != nil {
		return nil, err
	}

	machine.InitADC()
	adc := machine.ADC{Pin: pinBattery}
	if err := adc.Configure(machine.ADCConfig{Resolution: 12}); err != nil {
		return nil, err
	}

	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{BaudRate: linkBaud, TX: pinLinkTX, RX: pinLinkRX}); err != nil {
		return nil, err
	}
	link := &uartLink{u: u}

	clk := NewSystemClock()
	standby := &rp2Standby{wake: pinUSBSense}

	b := &Board{
		Peripherals: supervisor.Peripherals{
			HostEnable: &rp2Pin{p: pinHostEnable},
			LEDRed:     red,
			LEDGreen:   green,
			USBSense:   usb,
			ADC:        &rp2ADC{adc: adc},
			Clock:      clk,
			Calendar:   calendar.New(clk),
			Standby:    standby,
			Link:       link,
		},
		Name:          "pico",
		BatteryPeriod: supervisor.BatteryPeriod,
	}
	b.attach = func(ctx context.Context, s *supervisor.Supervisor) error {
		err := usb.p.SetInterrupt(machine.PinToggle, func(p machine.Pin) { s.UsbEdge(p.Get()) })
		if err != nil {
			return err
		}
		go link.serve(ctx, s.ChipSelect, func() { s.Raise(supervisor.EventTransferComplete) })
		startTicker(ctx, s, b.BatteryPeriod)
		return nil
	}
	return b, nil
}

// ---- GPIO ----

type rp2Pin struct{ p machine.Pin }

func (r *rp2Pin) ConfigureInput(pull supervisor.Pull) error {
	var mode machine.PinMode
	switch pull {
	case supervisor.PullUp:
		mode = machine.PinInputPullup
	case supervisor.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

// ConfigureOutput latches the level before enabling the driver.
func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Set(initial)
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }

func (r *rp2Pin) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

// ---- ADC ----

// rp2ADC runs the blocking machine conversion in Start; Done is then
// immediately true.
type rp2ADC struct {
	adc   machine.ADC
	value uint16
	done  bool
}

func (a *rp2ADC) Start() error {
	a.value = a.adc.Get() >> 4 // machine scales to 16 bits
	a.done = true
	return nil
}

func (a *rp2ADC) Done() bool    { return a.done }
func (a *rp2ADC) Value() uint16 { return a.value }
func (a *rp2ADC) Stop()         { a.done = false }

// ---- Standby ----

// rp2Standby parks until the wake pin rises, then resets the chip so the
// firmware re-enters from the top, as it would leaving hardware standby.
type rp2Standby struct {
	wake machine.Pin
	woke atomic.Bool
}

func (s *rp2Standby) EnableWake() error {
	s.woke.Store(false)
	return s.wake.SetInterrupt(machine.PinRising, func(machine.Pin) { s.woke.Store(true) })
}

func (s *rp2Standby) Enter() {
	for !s.woke.Load() {
		time.Sleep(50 * time.Millisecond)
	}
	machine.CPUReset()
}

// ---- Link ----

// uartLink carries the 4-byte exchange over UART for boards without an SPI
// slave. The first byte of a frame stands in for the chip-select edge; the
// armed response is written back once the request is complete.
type uartLink struct {
	u *uartx.UART

	mu     sync.Mutex
	tx, rx *supervisor.Frame
}

func (l *uartLink) Exchange(tx, rx *supervisor.Frame) error {
	l.mu.Lock()
	l.tx, l.rx = tx, rx
	l.mu.Unlock()
	return nil
}

func (l *uartLink) serve(ctx context.Context, chipSelect, done func()) {
	var buf supervisor.Frame
	n := 0
	for ctx.Err() == nil {
		rctx := ctx
		cancel := func() {}
		if n > 0 {
			rctx, cancel = context.WithTimeout(ctx, linkFrameGap)
		}
		m, err := l.u.RecvSomeContext(rctx, buf[n:])
		cancel()
		if err != nil {
			if n > 0 && ctx.Err() == nil {
				println("[link] partial frame dropped")
			}
			n = 0
			continue
		}
		if n == 0 && m > 0 {
			chipSelect()
		}
		n += m
		if n < supervisor.FrameLen {
			continue
		}
		n = 0

		l.mu.Lock()
		if l.tx == nil || l.rx == nil {
			l.mu.Unlock()
			continue
		}
		resp := *l.tx
		*l.rx = buf
		l.mu.Unlock()

		if _, err := l.u.Write(resp[:]); err != nil {
			println("[link] write:", err.Error())
		}
		done()
	}
}
