package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"pwrsup-go/errcode"
)

// Supervisor is the single state record owned by the control loop. Interrupt
// code only touches it through Raise, UsbEdge and ChipSelect.
type Supervisor struct {
	p     Peripherals
	power *Sequencer
	timer DeferredTimer
	pub   Publisher

	flags Flags
	wake  chan struct{}
	usb   atomic.Bool

	battery   uint16
	tx, rx    Frame
	missed    uint32
	suspended bool
}

// New checks that every collaborator is present. A missing collaborator is a
// configuration failure; see Trap. pub may be nil.
func New(p Peripherals, pub Publisher) (*Supervisor, error) {
	switch {
	case p.HostEnable == nil, p.LEDRed == nil, p.LEDGreen == nil, p.USBSense == nil:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "supervisor.New", Msg: "missing pin"}
	case p.ADC == nil, p.Clock == nil, p.Calendar == nil, p.Standby == nil, p.Link == nil:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "supervisor.New", Msg: "missing peripheral"}
	}
	s := &Supervisor{
		p:     p,
		power: NewSequencer(p.HostEnable, p.Clock, p.Standby),
		timer: NewDeferredTimer(ShutdownDwellMs),
		pub:   pub,
		wake:  make(chan struct{}, 1),
	}
	s.power.onChange = s.publishHost
	return s, nil
}

// Start runs the boot sequence: take over the host-enable line and seed USB
// presence from the sense pin.
func (s *Supervisor) Start() error {
	resumed, err := s.power.Init()
	if err != nil {
		return err
	}
	if resumed {
		println("[sup] resuming after host update; host kept powered")
	}
	s.usb.Store(s.p.USBSense.Get())
	s.tx = Frame{}
	s.rx = Frame{}
	s.timer = NewDeferredTimer(ShutdownDwellMs)
	s.publishUSB()
	s.publishShutdown()
	return nil
}

// -----------------------------------------------------------------------------
// Interrupt-side entry points (must not block)
// -----------------------------------------------------------------------------

// Raise marks an event pending and wakes Run.
func (s *Supervisor) Raise(e Event) {
	s.flags.Raise(e)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// UsbEdge records the USB sense level the platform sampled in its edge ISR.
func (s *Supervisor) UsbEdge(level bool) {
	s.usb.Store(level)
	s.Raise(EventUsbEdge)
}

// ChipSelect starts a transfer on the chip-select edge. The current tx frame
// is what the host will read during this exchange.
func (s *Supervisor) ChipSelect() {
	if err := s.p.Link.Exchange(&s.tx, &s.rx); err != nil {
		println("[sup] exchange not started:", err.Error())
	}
}

// -----------------------------------------------------------------------------
// Control loop
// -----------------------------------------------------------------------------

// Step runs one loop iteration: battery monitor, protocol handler, deferred
// timer, in that order. It returns errcode.Suspended once the device has gone
// to standby; nothing further runs until the wake source restarts it.
func (s *Supervisor) Step() error {
	if s.suspended {
		return errcode.Suspended
	}

	if s.flags.Take(EventBatteryTick) {
		if err := s.monitorBattery(); err != nil {
			return s.suspend(err)
		}
	}

	if s.flags.Take(EventTransferComplete) {
		s.handleCommand()
	}

	if s.flags.Take(EventUsbEdge) {
		s.publishUSB()
	}

	switch s.timer.Poll(s.p.Clock.Millis()) {
	case ShutdownArmed:
		s.publishShutdown()
		return s.suspend(s.power.PowerOffThenStandby("shutdown"))
	case RestartArmed:
		s.power.RestartCycle("restart")
		s.publishShutdown()
	}
	return nil
}

func (s *Supervisor) suspend(err error) error {
	if errcode.Of(err) == errcode.Suspended {
		s.suspended = true
	}
	return err
}

// Run drives Step until ctx is cancelled or the device suspends. Between
// iterations it sleeps until an event is raised, polling every few
// milliseconds while a deferred action is armed.
func (s *Supervisor) Run(ctx context.Context) error {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		drainTimer(t)
	}
	defer t.Stop()

	for {
		if err := s.Step(); err != nil {
			return err
		}
		wait := idleWaitTime
		if s.timer.State() != ShutdownIdle {
			wait = armedPollTime
		}
		resetTimer(t, wait)

		select {
		case <-ctx.Done():
			println("[sup] stopping")
			return ctx.Err()
		case <-s.wake:
		case <-t.C:
		}
	}
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (s *Supervisor) BatteryVoltage() uint16  { return s.battery }
func (s *Supervisor) USBPresent() bool        { return s.usb.Load() }
func (s *Supervisor) HostEnabled() bool       { return s.power.Enabled() }
func (s *Supervisor) Shutdown() ShutdownState { return s.timer.State() }
func (s *Supervisor) ShutdownBase() uint32    { return s.timer.Base() }
func (s *Supervisor) Response() Frame         { return s.tx }
func (s *Supervisor) Suspended() bool         { return s.suspended }
func (s *Supervisor) MissedSamples() uint32   { return s.missed }
