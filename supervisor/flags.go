package supervisor

import "sync/atomic"

// Event is one interrupt-originated signal. Values are bit flags so that a
// pending set can be held in one word.
type Event uint32

const (
	EventBatteryTick Event = 1 << iota
	EventTransferComplete
	EventUsbEdge
)

func (e Event) String() string {
	switch e {
	case EventBatteryTick:
		return "battery_tick"
	case EventTransferComplete:
		return "transfer_complete"
	case EventUsbEdge:
		return "usb_edge"
	default:
		return "unknown"
	}
}

// Flags holds pending events. Each bit has one producer (an ISR) and one
// consumer (the control loop); atomics keep the handoff ordered without locks
// so Raise is safe to call from interrupt context.
type Flags struct {
	bits atomic.Uint32
}

// Raise marks e pending.
func (f *Flags) Raise(e Event) {
	for {
		old := f.bits.Load()
		if old&uint32(e) == uint32(e) || f.bits.CompareAndSwap(old, old|uint32(e)) {
			return
		}
	}
}

// Take reports whether e was pending and clears it.
func (f *Flags) Take(e Event) bool {
	for {
		old := f.bits.Load()
		if old&uint32(e) == 0 {
			return false
		}
		if f.bits.CompareAndSwap(old, old&^uint32(e)) {
			return true
		}
	}
}

// Pending returns the raw pending set without clearing it.
func (f *Flags) Pending() Event { return Event(f.bits.Load()) }
