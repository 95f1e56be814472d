package types

// ------------------------
// Supervisor telemetry (retained, topics under power/...)
// ------------------------

// BatteryLevel is the coarse classification against the build-time thresholds.
type BatteryLevel string

const (
	BatteryDead   BatteryLevel = "dead"
	BatteryLow    BatteryLevel = "low"
	BatteryNormal BatteryLevel = "normal"
	BatteryFull   BatteryLevel = "full"
)

// Retained value: power/battery/value
type BatteryValue struct {
	Raw     uint16       `json:"raw"`     // 12-bit ADC counts
	MilliV  int32        `json:"pack_mV"` // pack voltage before the 1:2 divider
	Percent uint8        `json:"percent"` // linear 3.40 V..4.08 V estimate
	Level   BatteryLevel `json:"level"`
	TSms    int64        `json:"ts_ms"`
}

// Retained value: power/usb/value
type USBValue struct {
	Present bool  `json:"present"`
	TSms    int64 `json:"ts_ms"`
}

// Retained value: power/host/value
type HostPowerValue struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"` // "boot", "battery", "restart", "shutdown"
	TSms    int64  `json:"ts_ms"`
}

// ShutdownPhase mirrors the supervisor's deferred-action state.
type ShutdownPhase string

const (
	ShutdownIdle    ShutdownPhase = "idle"
	ShutdownArmed   ShutdownPhase = "shutdown"
	RestartArmed    ShutdownPhase = "restart"
	ShutdownUnknown ShutdownPhase = "unknown"
)

// Retained value: power/shutdown/value
type ShutdownValue struct {
	Phase   ShutdownPhase `json:"phase"`
	DwellMs uint32        `json:"dwell_ms"`
	TSms    int64         `json:"ts_ms"`
}

// Version is the firmware version reported over the command link.
type Version struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
}
