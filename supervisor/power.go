package supervisor

import "pwrsup-go/errcode"

// Sequencer owns the host-enable line. High = host may run.
type Sequencer struct {
	en      Pin
	clock   Clock
	standby Standby

	enabled bool
	// onChange observes every level change; reason names the trigger.
	onChange func(enabled bool, reason string)
}

func NewSequencer(en Pin, clock Clock, standby Standby) *Sequencer {
	return &Sequencer{en: en, clock: clock, standby: standby}
}

// Init takes the line over at boot. The host holds the line high across its
// own reset during a firmware update; if it reads high here the output starts
// high so the host is not cut mid-update. Otherwise it starts low.
//
// The level is written while the pin is still an input, then the pin is
// switched to push-pull with the same level so the transition cannot glitch.
func (q *Sequencer) Init() (resumed bool, err error) {
	if err := q.en.ConfigureInput(PullNone); err != nil {
		return false, errcode.Wrap(errcode.Error, "host_enable_input", err)
	}
	level := q.en.Get()
	q.en.Set(level)
	if err := q.en.ConfigureOutput(level); err != nil {
		return false, errcode.Wrap(errcode.Error, "host_enable_output", err)
	}
	q.en.Set(level)
	q.enabled = level
	q.notify("boot")
	return level, nil
}

// Enabled reports the last level driven on the line.
func (q *Sequencer) Enabled() bool { return q.enabled }

// PowerOn asserts the line (no-op in effect if already asserted).
func (q *Sequencer) PowerOn(reason string) { q.drive(true, reason) }

// PowerOff deasserts the line.
func (q *Sequencer) PowerOff(reason string) { q.drive(false, reason) }

// PowerOffThenStandby deasserts the line, arms the wake source and suspends.
// It returns errcode.Suspended once the standby controller hands control back
// (host builds); on hardware Enter never returns.
func (q *Sequencer) PowerOffThenStandby(reason string) error {
	q.drive(false, reason)
	if err := q.standby.EnableWake(); err != nil {
		println("[power] wake source not armed:", err.Error())
	}
	println("[power] entering standby")
	q.standby.Enter()
	return errcode.Suspended
}

// RestartCycle deasserts the line, waits the restart dwell and reasserts it.
func (q *Sequencer) RestartCycle(reason string) {
	q.drive(false, reason)
	q.clock.Sleep(RestartDelayMs)
	q.drive(true, reason)
}

func (q *Sequencer) drive(level bool, reason string) {
	q.en.Set(level)
	if q.enabled == level {
		return
	}
	q.enabled = level
	q.notify(reason)
}

func (q *Sequencer) notify(reason string) {
	if q.enabled {
		println("[power] host enabled:", reason)
	} else {
		println("[power] host disabled:", reason)
	}
	if q.onChange != nil {
		q.onChange(q.enabled, reason)
	}
}
