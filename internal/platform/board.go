// Package platform builds the supervisor's peripheral set for the current
// target and wires its interrupt sources into a running supervisor.
package platform

import (
	"context"
	"time"

	"pwrsup-go/supervisor"
)

// Board is one concrete peripheral set plus the interrupt wiring that feeds
// it. Attach must be called after supervisor.Start and before Run.
type Board struct {
	supervisor.Peripherals

	// Name identifies the pin map in logs.
	Name string

	// BatteryPeriod is the sampling interrupt period.
	BatteryPeriod time.Duration

	attach func(ctx context.Context, s *supervisor.Supervisor) error
}

// Attach hooks the board's interrupt sources (USB sense edge, transfer
// completion, battery timer) to s. Sources stop when ctx is cancelled.
func (b *Board) Attach(ctx context.Context, s *supervisor.Supervisor) error {
	if b.attach == nil {
		return nil
	}
	return b.attach(ctx, s)
}

// startTicker raises EventBatteryTick every period until ctx ends. It stands
// in for the periodic hardware timer.
func startTicker(ctx context.Context, s *supervisor.Supervisor, period time.Duration) {
	if period <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Raise(supervisor.EventBatteryTick)
			}
		}
	}()
}
