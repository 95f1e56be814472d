// Package console prints supervisor telemetry and a periodic heartbeat on the
// debug UART.
package console

import (
	"context"
	"time"

	"pwrsup-go/bus"
	"pwrsup-go/types"
	"pwrsup-go/x/conv"
)

var (
	topicPower         = bus.T("power", "#")
	topicConfigConsole = bus.T("config", "console")
)

const defaultInterval = 10 * time.Second

// Service logs every retained power value it sees. Config messages on
// config/console may carry {"interval": seconds}.
type Service struct {
	Interval time.Duration
	// Out receives each rendered line. Defaults to println.
	Out func(string)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	powerSub := conn.Subscribe(topicPower)
	defer conn.Unsubscribe(powerSub)
	cfgSub := conn.Subscribe(topicConfigConsole)
	defer conn.Unsubscribe(cfgSub)

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var beats uint64
	for {
		select {
		case <-ctx.Done():
			s.out("[console] stopping")
			return
		case <-tick.C:
			beats++
			var buf [20]byte
			s.out("[console] heartbeat " + string(conv.Utoa(buf[:], beats)))
		case msg := <-powerSub.Channel():
			if line := Line(msg); line != "" {
				s.out(line)
			}
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
					s.out("[console] heartbeat interval changed")
				}
			}
		}
	}
}

func (s *Service) out(line string) {
	if s.Out != nil {
		s.Out(line)
		return
	}
	println(line)
}

// Start the console service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

// Line renders one telemetry message, or "" for payloads it does not know.
func Line(msg *bus.Message) string {
	var a, b, c [20]byte
	switch v := msg.Payload.(type) {
	case types.BatteryValue:
		return "[console] battery raw=" + string(conv.Utoa(a[:], uint64(v.Raw))) +
			" mV=" + string(conv.Itoa(b[:], int64(v.MilliV))) +
			" pct=" + string(conv.Utoa(c[:], uint64(v.Percent))) +
			" level=" + string(v.Level)
	case types.USBValue:
		if v.Present {
			return "[console] usb present"
		}
		return "[console] usb absent"
	case types.HostPowerValue:
		state := "off"
		if v.Enabled {
			state = "on"
		}
		return "[console] host " + state + " (" + v.Reason + ")"
	case types.ShutdownValue:
		return "[console] shutdown " + string(v.Phase) +
			" dwell_ms=" + string(conv.Utoa(a[:], uint64(v.DwellMs)))
	}
	return ""
}
