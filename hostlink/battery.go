package hostlink

import (
	"math"

	"pwrsup-go/x/mathx"
)

// Volts converts a raw sample to pack volts: 12-bit ADC, 3.258 V reference,
// 1:2 divider.
func Volts(raw uint16) float64 { return 2 * 3.258 * float64(raw) / 4096 }

// Percent estimates charge from pack volts. The curve is linear from 3.40 V
// (0 %) in 10 mV steps of 1.4888 %, capped at 100 % from 4.08 V. Volts are
// snapped to the nearest step.
func Percent(volts float64) float64 {
	const (
		empty   = 3.40
		step    = 0.01
		perStep = 1.4888
		steps   = 68
	)
	n := mathx.Clamp(math.Round((volts-empty)/step), 0, steps)
	if n == steps {
		return 100
	}
	return n * perStep
}
