package supervisor

import (
	"pwrsup-go/bus"
	"pwrsup-go/types"
)

// Peripheral collaborators. The platform layer configures the hardware; the
// supervisor only uses these primitive operations.

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Pin is a digital I/O line. Level true is the high logic level.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
}

// ADC is a single-channel, software-started converter.
type ADC interface {
	Start() error
	Done() bool
	Value() uint16
	Stop()
}

// Clock is the monotonic millisecond tick. Millis wraps at 2^32.
type Clock interface {
	Millis() uint32
	Sleep(ms uint32)
}

// Calendar is the real-time clock.
type Calendar interface {
	Time() (types.TimeOfDay, error)
	SetTime(t types.TimeOfDay) error
	Date() (types.Date, error)
	SetDate(d types.Date) error
}

// Standby enters the lowest-power retention state. On hardware Enter does not
// return: the wake edge restarts the program from the top.
type Standby interface {
	EnableWake() error
	Enter()
}

// Transceiver is the slave side of the synchronous serial link. Exchange
// starts one full-duplex transfer: tx is shifted out while rx is filled.
// Completion is reported by the platform raising EventTransferComplete.
type Transceiver interface {
	Exchange(tx, rx *Frame) error
}

// Publisher receives telemetry. *bus.Connection satisfies it.
type Publisher interface {
	Publish(msg *bus.Message)
}

// Peripherals bundles the collaborators handed to New.
type Peripherals struct {
	HostEnable Pin
	LEDRed     Pin
	LEDGreen   Pin
	USBSense   Pin

	ADC      ADC
	Clock    Clock
	Calendar Calendar
	Standby  Standby
	Link     Transceiver
}
