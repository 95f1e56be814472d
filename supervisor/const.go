package supervisor

import (
	"time"

	"pwrsup-go/x/mathx"
)

// Battery thresholds in raw 12-bit ADC counts. The pack is measured through a
// 1:2 divider against a 3.258 V reference, so Dead is about 3.37 V.
const (
	BatteryDeadThreshold uint16 = 2120
	BatteryLowThreshold  uint16 = 2235
	BatteryFullThreshold uint16 = 2500
)

const (
	FirmwareMajor uint8 = 0
	FirmwareMinor uint8 = 2
)

// Timings in milliseconds of the monotonic tick.
const (
	ShutdownDwellMs     uint32 = 30000
	RestartDelayMs      uint32 = 500
	LowBatteryBlinkMs   uint32 = 500
	LEDTestStepMs       uint32 = 500
	ConversionTimeoutMs uint32 = 500
	BootDelayMs         uint32 = 1000
)

// BatteryPeriod is the period of the sampling interrupt on the reference board.
const BatteryPeriod = 3500 * time.Millisecond

// ADC reference and divider used to express raw counts as pack millivolts.
const (
	adcRefMilliV  = 3258
	adcDivider    = 2
	adcFullScale  = 4096
	FrameLen      = 4
	armedPollTime = 10 * time.Millisecond
	idleWaitTime  = time.Hour
)

// Linear charge estimate endpoints in pack millivolts.
const (
	packEmptyMilliV = 3400
	packFullMilliV  = 4080
)

// RawToMilliV converts a raw sample to pack millivolts, rounded.
func RawToMilliV(raw uint16) int32 {
	return int32(mathx.RoundDiv(uint32(raw)*adcDivider*adcRefMilliV, adcFullScale))
}

// ChargePercent is a linear state-of-charge estimate from a raw sample.
func ChargePercent(raw uint16) uint8 {
	mv := RawToMilliV(raw)
	if mv > 0xFFFF {
		mv = 0xFFFF
	}
	return uint8(mathx.MapU16(uint16(mv), packEmptyMilliV, packFullMilliV, 0, 100))
}
