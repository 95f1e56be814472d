package supervisor

import "pwrsup-go/types"

// ShutdownState is the deferred power action armed by the host.
type ShutdownState uint8

const (
	ShutdownIdle ShutdownState = iota
	ShutdownArmed
	RestartArmed
)

func (s ShutdownState) Phase() types.ShutdownPhase {
	switch s {
	case ShutdownIdle:
		return types.ShutdownIdle
	case ShutdownArmed:
		return types.ShutdownArmed
	case RestartArmed:
		return types.RestartArmed
	default:
		return types.ShutdownUnknown
	}
}

// DeferredTimer converts an arm command into an action after a fixed dwell.
//
// Tick arithmetic is unsigned 32-bit. The action fires once now-base >= dwell
// with now >= base. If base >= now the counter has wrapped since arming (or
// nothing has elapsed), and base is moved to now: the dwell window restarts
// rather than firing early or never.
type DeferredTimer struct {
	state ShutdownState
	base  uint32
	dwell uint32
}

func NewDeferredTimer(dwellMs uint32) DeferredTimer {
	return DeferredTimer{dwell: dwellMs}
}

// Arm records st and the base tick. A later Arm overwrites an earlier one.
func (t *DeferredTimer) Arm(st ShutdownState, now uint32) {
	t.state = st
	t.base = now
}

// Poll advances the timer. It returns the state to execute, or ShutdownIdle
// when nothing is due. A fired timer is back to idle with a zero base.
func (t *DeferredTimer) Poll(now uint32) ShutdownState {
	if t.state == ShutdownIdle {
		return ShutdownIdle
	}
	switch {
	case now >= t.base && now-t.base >= t.dwell:
		fire := t.state
		t.state = ShutdownIdle
		t.base = 0
		return fire
	case t.base >= now:
		t.base = now
	}
	return ShutdownIdle
}

func (t *DeferredTimer) State() ShutdownState { return t.state }
func (t *DeferredTimer) Base() uint32         { return t.base }
func (t *DeferredTimer) Dwell() uint32        { return t.dwell }
