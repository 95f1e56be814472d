package supervisor

import (
	"encoding/binary"

	"pwrsup-go/types"
	"pwrsup-go/x/conv"
)

// Frame is one fixed-size request or response on the command link.
type Frame [FrameLen]byte

// Command is request byte 0.
type Command uint8

const (
	CmdNop          Command = 0 // read back the prior response
	CmdBattery      Command = 1
	CmdGetTime      Command = 2
	CmdGetDate      Command = 3
	CmdSetTime      Command = 4
	CmdSetDate      Command = 5
	CmdShutdown     Command = 6
	CmdRestart      Command = 7
	CmdLEDTest      Command = 8 // blocks for 2*LEDTestStepMs
	CmdFirmwareVers Command = 9
)

func (c Command) String() string {
	switch c {
	case CmdNop:
		return "nop"
	case CmdBattery:
		return "battery"
	case CmdGetTime:
		return "get_time"
	case CmdGetDate:
		return "get_date"
	case CmdSetTime:
		return "set_time"
	case CmdSetDate:
		return "set_date"
	case CmdShutdown:
		return "shutdown"
	case CmdRestart:
		return "restart"
	case CmdLEDTest:
		return "led_test"
	case CmdFirmwareVers:
		return "firmware_version"
	default:
		return "unknown"
	}
}

// handleCommand executes the request sitting in rx and prepares tx for the
// next exchange. Unknown codes leave tx untouched; the protocol has no error
// channel, so failures only show up as stale response bytes.
func (s *Supervisor) handleCommand() {
	req := s.rx
	tx := &s.tx

	switch Command(req[0]) {
	case CmdNop:

	case CmdBattery:
		binary.BigEndian.PutUint16(tx[0:2], s.battery)

	case CmdGetTime:
		t, err := s.p.Calendar.Time()
		if err != nil {
			println("[proto] get time:", err.Error())
			return
		}
		tx[0], tx[1], tx[2] = t.Hour, t.Minute, t.Second

	case CmdGetDate:
		d, err := s.p.Calendar.Date()
		if err != nil {
			println("[proto] get date:", err.Error())
			return
		}
		tx[0], tx[1], tx[2] = d.Day, d.Month, d.Year

	case CmdSetTime:
		t := types.TimeOfDay{Hour: req[1], Minute: req[2], Second: req[3]}
		if err := s.p.Calendar.SetTime(t); err != nil {
			println("[proto] set time:", err.Error())
		}

	case CmdSetDate:
		d := types.Date{Day: req[1], Month: req[2], Year: req[3]}
		if err := s.p.Calendar.SetDate(d); err != nil {
			println("[proto] set date:", err.Error())
		}

	case CmdShutdown:
		s.arm(ShutdownArmed)

	case CmdRestart:
		s.arm(RestartArmed)

	case CmdLEDTest:
		s.ledSelfTest()

	case CmdFirmwareVers:
		tx[0], tx[1] = FirmwareMajor, FirmwareMinor

	default:
		var buf [2]byte
		println("[proto] ignored command 0x" + string(conv.U8Hex(buf[:], req[0])))
	}
}

func (s *Supervisor) arm(st ShutdownState) {
	now := s.p.Clock.Millis()
	s.timer.Arm(st, now)
	var buf [8]byte
	println("[proto] " + string(st.Phase()) + " armed at tick 0x" + string(conv.U32Hex(buf[:], now)))
	s.publishShutdown()
}

// ledSelfTest lights green then red for LEDTestStepMs each and restores both.
func (s *Supervisor) ledSelfTest() {
	red, green := s.p.LEDRed.Get(), s.p.LEDGreen.Get()

	s.p.LEDGreen.Set(ledOn)
	s.p.LEDRed.Set(ledOff)
	s.p.Clock.Sleep(LEDTestStepMs)

	s.p.LEDGreen.Set(ledOff)
	s.p.LEDRed.Set(ledOn)
	s.p.Clock.Sleep(LEDTestStepMs)

	s.p.LEDGreen.Set(green)
	s.p.LEDRed.Set(red)
}
