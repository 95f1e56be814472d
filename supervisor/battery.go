package supervisor

import (
	"pwrsup-go/errcode"
	"pwrsup-go/types"
)

// Indicator levels. Both LEDs are active-low.
const (
	ledOn  = false
	ledOff = true
)

// sampleBattery runs one conversion, bounded by ConversionTimeoutMs.
func (s *Supervisor) sampleBattery() (uint16, error) {
	if err := s.p.ADC.Start(); err != nil {
		return 0, errcode.Wrap(errcode.Error, "adc_start", err)
	}
	defer s.p.ADC.Stop()

	start := s.p.Clock.Millis()
	for !s.p.ADC.Done() {
		if s.p.Clock.Millis()-start >= ConversionTimeoutMs {
			return 0, errcode.Timeout
		}
		s.p.Clock.Sleep(1)
	}
	return s.p.ADC.Value(), nil
}

// monitorBattery is one battery cycle. A failed conversion keeps the previous
// sample and skips the cycle. Returns errcode.Suspended if the cycle ended in
// standby.
func (s *Supervisor) monitorBattery() error {
	v, err := s.sampleBattery()
	if err != nil {
		s.missed++
		println("[batt] sample skipped:", err.Error())
		return nil
	}
	s.battery = v

	if v <= BatteryDeadThreshold {
		s.publishBattery()
		return s.power.PowerOffThenStandby("battery")
	}
	s.power.PowerOn("battery")

	if v <= BatteryLowThreshold {
		s.p.LEDRed.Set(ledOn)
		s.p.Clock.Sleep(LowBatteryBlinkMs)
		s.p.LEDRed.Set(ledOff)
	}

	if s.usb.Load() {
		if v > BatteryFullThreshold {
			s.p.LEDGreen.Set(ledOn)
		} else {
			s.p.LEDGreen.Toggle()
		}
	} else {
		s.p.LEDGreen.Set(ledOff)
	}

	s.publishBattery()
	return nil
}

// Classify places a raw sample against the thresholds.
func Classify(raw uint16) types.BatteryLevel {
	switch {
	case raw <= BatteryDeadThreshold:
		return types.BatteryDead
	case raw <= BatteryLowThreshold:
		return types.BatteryLow
	case raw > BatteryFullThreshold:
		return types.BatteryFull
	default:
		return types.BatteryNormal
	}
}
