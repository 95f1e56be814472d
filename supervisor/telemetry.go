package supervisor

import (
	"pwrsup-go/bus"
	"pwrsup-go/types"
	"pwrsup-go/x/timex"
)

// Retained telemetry topics.
func TopicBattery() bus.Topic  { return bus.T("power", "battery", "value") }
func TopicUSB() bus.Topic      { return bus.T("power", "usb", "value") }
func TopicHost() bus.Topic     { return bus.T("power", "host", "value") }
func TopicShutdown() bus.Topic { return bus.T("power", "shutdown", "value") }

func (s *Supervisor) publish(topic bus.Topic, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(&bus.Message{Topic: topic, Payload: payload, Retained: true})
}

func (s *Supervisor) publishBattery() {
	s.publish(TopicBattery(), types.BatteryValue{
		Raw:     s.battery,
		MilliV:  RawToMilliV(s.battery),
		Percent: ChargePercent(s.battery),
		Level:   Classify(s.battery),
		TSms:    timex.NowMs(),
	})
}

func (s *Supervisor) publishUSB() {
	s.publish(TopicUSB(), types.USBValue{Present: s.usb.Load(), TSms: timex.NowMs()})
}

func (s *Supervisor) publishHost(enabled bool, reason string) {
	s.publish(TopicHost(), types.HostPowerValue{Enabled: enabled, Reason: reason, TSms: timex.NowMs()})
}

func (s *Supervisor) publishShutdown() {
	s.publish(TopicShutdown(), types.ShutdownValue{
		Phase:   s.timer.State().Phase(),
		DwellMs: s.timer.Dwell(),
		TSms:    timex.NowMs(),
	})
}
