package supervisor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pwrsup-go/bus"
	"pwrsup-go/errcode"
	"pwrsup-go/internal/platform"
	"pwrsup-go/supervisor"
	"pwrsup-go/types"
)

const (
	ledOn  = false
	ledOff = true
)

func newSupervisor(t *testing.T, pub supervisor.Publisher) (*platform.TestBoard, *supervisor.Supervisor) {
	t.Helper()
	tb := platform.NewTestBoard()
	s, err := supervisor.New(tb.Peripherals, pub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := tb.Attach(ctx, s); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return tb, s
}

// send runs one exchange and the loop step that handles it, returning the
// bytes the host read during the exchange.
func send(t *testing.T, tb *platform.TestBoard, s *supervisor.Supervisor, req ...byte) supervisor.Frame {
	t.Helper()
	var f supervisor.Frame
	copy(f[:], req)
	resp, err := tb.Link.Transact(f)
	if err != nil {
		t.Fatalf("Transact(%v): %v", req, err)
	}
	if err := s.Step(); err != nil {
		t.Fatalf("Step after %v: %v", req, err)
	}
	return resp
}

// query issues cmd and reads the response back with a no-op exchange.
func query(t *testing.T, tb *platform.TestBoard, s *supervisor.Supervisor, req ...byte) supervisor.Frame {
	t.Helper()
	send(t, tb, s, req...)
	return send(t, tb, s, byte(supervisor.CmdNop))
}

func batteryCycle(t *testing.T, s *supervisor.Supervisor) error {
	t.Helper()
	s.Raise(supervisor.EventBatteryTick)
	return s.Step()
}

func TestNewRejectsMissingPeripherals(t *testing.T) {
	tb := platform.NewTestBoard()
	p := tb.Peripherals
	p.ADC = nil
	if _, err := supervisor.New(p, nil); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("missing ADC: err=%v", err)
	}
	p = tb.Peripherals
	p.LEDGreen = nil
	if _, err := supervisor.New(p, nil); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("missing LED: err=%v", err)
	}
}

func TestStartKeepsHostPoweredAfterUpdate(t *testing.T) {
	tb := platform.NewTestBoard()
	tb.HostEnable.Set(true) // host holding the line across its own reset
	tb.HostEnable.ResetHistory()

	s, err := supervisor.New(tb.Peripherals, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.HostEnabled() || !tb.HostEnable.Get() || !tb.HostEnable.IsOutput() {
		t.Fatalf("host not kept powered: enabled=%v level=%v out=%v",
			s.HostEnabled(), tb.HostEnable.Get(), tb.HostEnable.IsOutput())
	}
	for i, ev := range tb.HostEnable.History() {
		if !ev.Level {
			t.Fatalf("glitch at write %d: %+v", i, ev)
		}
	}
}

func TestStartLeavesHostOffFromColdBoot(t *testing.T) {
	tb := platform.NewTestBoard()
	s, _ := supervisor.New(tb.Peripherals, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.HostEnabled() || tb.HostEnable.Get() {
		t.Fatal("host enabled at cold boot")
	}
	for i, ev := range tb.HostEnable.History() {
		if ev.Level {
			t.Fatalf("glitch at write %d: %+v", i, ev)
		}
	}
}

func TestDeadBatteryEntersStandby(t *testing.T) {
	for _, raw := range []uint16{0, 1000, supervisor.BatteryDeadThreshold} {
		tb, s := newSupervisor(t, nil)
		if err := batteryCycle(t, s); err != nil {
			t.Fatalf("normal cycle: %v", err)
		}
		if !tb.HostEnable.Get() {
			t.Fatal("host not powered on a normal battery")
		}

		tb.ADC.SetSample(raw)
		if err := batteryCycle(t, s); !errors.Is(err, errcode.Suspended) {
			t.Fatalf("raw=%d: Step err=%v, want suspended", raw, err)
		}
		if tb.HostEnable.Get() || s.HostEnabled() {
			t.Fatalf("raw=%d: host still powered", raw)
		}
		if tb.Standby.Entered() != 1 || !tb.Standby.WakeArmed() {
			t.Fatalf("raw=%d: entered=%d wake=%v", raw, tb.Standby.Entered(), tb.Standby.WakeArmed())
		}
		if !s.Suspended() {
			t.Fatal("not marked suspended")
		}
		// Terminal: nothing runs until restart.
		if err := batteryCycle(t, s); !errors.Is(err, errcode.Suspended) {
			t.Fatalf("step after standby: %v", err)
		}
		if tb.Standby.Entered() != 1 {
			t.Fatal("standby re-entered")
		}
	}
}

func TestChargingLEDToggles(t *testing.T) {
	for _, raw := range []uint16{supervisor.BatteryDeadThreshold + 1, supervisor.BatteryLowThreshold + 1, supervisor.BatteryFullThreshold} {
		tb, s := newSupervisor(t, nil)
		tb.USBSense.Set(true)
		tb.ADC.SetSample(raw)

		prev := tb.LEDGreen.Get()
		for i := 0; i < 4; i++ {
			if err := batteryCycle(t, s); err != nil {
				t.Fatalf("cycle %d: %v", i, err)
			}
			cur := tb.LEDGreen.Get()
			if cur == prev {
				t.Fatalf("raw=%d cycle %d: green held at %v", raw, i, cur)
			}
			prev = cur
		}
	}
}

func TestChargedAndUnpluggedLED(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.USBSense.Set(true)
	tb.ADC.SetSample(supervisor.BatteryFullThreshold + 1)
	for i := 0; i < 3; i++ {
		_ = batteryCycle(t, s)
		if tb.LEDGreen.Get() != ledOn {
			t.Fatalf("cycle %d: charged LED not steady on", i)
		}
	}

	tb.USBSense.Set(false)
	tb.ADC.SetSample(supervisor.BatteryLowThreshold + 10)
	for i := 0; i < 3; i++ {
		_ = batteryCycle(t, s)
		if tb.LEDGreen.Get() != ledOff {
			t.Fatalf("cycle %d: green lit without USB", i)
		}
	}
}

func TestLowBatteryBlink(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.ADC.SetSample(supervisor.BatteryLowThreshold)
	if err := batteryCycle(t, s); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	h := tb.LEDRed.History()
	if len(h) != 2 || h[0].Level != ledOn || h[1].Level != ledOff {
		t.Fatalf("red history = %+v, want on then off", h)
	}
	if !tb.HostEnable.Get() {
		t.Fatal("low battery should still power the host")
	}

	tb.LEDRed.ResetHistory()
	tb.ADC.SetSample(supervisor.BatteryLowThreshold + 1)
	_ = batteryCycle(t, s)
	if len(tb.LEDRed.History()) != 0 {
		t.Fatal("red blinked above the low threshold")
	}
}

func TestConversionTimeoutKeepsLastSample(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	_ = batteryCycle(t, s)
	if s.BatteryVoltage() != platform.SimSample {
		t.Fatalf("voltage = %d", s.BatteryVoltage())
	}

	tb.ADC.SetStuck(true)
	tb.ADC.SetSample(1000) // would be dead if it were read
	before := tb.Tick.Millis()
	if err := batteryCycle(t, s); err != nil {
		t.Fatalf("timeout must not be fatal: %v", err)
	}
	if s.BatteryVoltage() != platform.SimSample {
		t.Fatalf("voltage changed to %d on timeout", s.BatteryVoltage())
	}
	if s.MissedSamples() != 1 {
		t.Fatalf("missed = %d", s.MissedSamples())
	}
	if waited := tb.Tick.Millis() - before; waited < supervisor.ConversionTimeoutMs {
		t.Fatalf("gave up after %d ms", waited)
	}
	if starts, stops := tb.ADC.Counts(); starts != stops {
		t.Fatalf("ADC left running: starts=%d stops=%d", starts, stops)
	}
	if !tb.HostEnable.Get() {
		t.Fatal("host lost power on a skipped sample")
	}
}

func TestBatteryQuery(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.ADC.SetSample(0x08A1)
	_ = batteryCycle(t, s)

	resp := query(t, tb, s, byte(supervisor.CmdBattery), 0, 0, 0)
	if resp[0] != 0x08 || resp[1] != 0xA1 {
		t.Fatalf("battery response = % x", resp)
	}
}

func TestVersion(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.ADC.SetSample(0x0FFF)
	_ = batteryCycle(t, s)
	send(t, tb, s, byte(supervisor.CmdShutdown))

	resp := query(t, tb, s, byte(supervisor.CmdFirmwareVers))
	if resp[0] != 0 || resp[1] != 2 {
		t.Fatalf("version = % x", resp)
	}
}

func TestTimeAndDateRoundTrip(t *testing.T) {
	tb, s := newSupervisor(t, nil)

	send(t, tb, s, byte(supervisor.CmdSetTime), 10, 30, 0)
	resp := query(t, tb, s, byte(supervisor.CmdGetTime))
	if resp[0] != 10 || resp[1] != 30 || resp[2] != 0 {
		t.Fatalf("time = % d", resp)
	}

	send(t, tb, s, byte(supervisor.CmdSetDate), 29, 2, 24)
	resp = query(t, tb, s, byte(supervisor.CmdGetDate))
	if resp[0] != 29 || resp[1] != 2 || resp[2] != 24 {
		t.Fatalf("date = % d", resp)
	}
}

func TestInvalidCalendarWriteIgnored(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	send(t, tb, s, byte(supervisor.CmdSetTime), 8, 0, 0)
	send(t, tb, s, byte(supervisor.CmdSetTime), 25, 0, 0)
	resp := query(t, tb, s, byte(supervisor.CmdGetTime))
	if resp[0] != 8 {
		t.Fatalf("time = % d", resp)
	}
}

func TestUnknownCommandLeavesResponse(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	_ = batteryCycle(t, s)
	send(t, tb, s, byte(supervisor.CmdBattery))
	want := s.Response()

	for _, code := range []byte{10, 0x42, 0xFF} {
		send(t, tb, s, code, 1, 2, 3)
		if got := s.Response(); got != want {
			t.Fatalf("code %#x changed response: % x -> % x", code, want, got)
		}
	}
	if resp := send(t, tb, s, byte(supervisor.CmdNop)); resp != want {
		t.Fatalf("read-back = % x, want % x", resp, want)
	}
}

func TestLEDSelfTestRestores(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.LEDRed.Set(ledOn)
	tb.LEDGreen.Set(ledOff)
	tb.LEDRed.ResetHistory()
	tb.LEDGreen.ResetHistory()
	before := len(tb.Tick.Sleeps())

	send(t, tb, s, byte(supervisor.CmdLEDTest))

	if tb.LEDRed.Get() != ledOn || tb.LEDGreen.Get() != ledOff {
		t.Fatalf("not restored: red=%v green=%v", tb.LEDRed.Get(), tb.LEDGreen.Get())
	}
	g := tb.LEDGreen.History()
	if len(g) < 2 || g[0].Level != ledOn || g[1].Level != ledOff {
		t.Fatalf("green history = %+v", g)
	}
	r := tb.LEDRed.History()
	if len(r) < 2 || r[0].Level != ledOff || r[1].Level != ledOn {
		t.Fatalf("red history = %+v", r)
	}
	sleeps := tb.Tick.Sleeps()[before:]
	if len(sleeps) != 2 || sleeps[0] != supervisor.LEDTestStepMs || sleeps[1] != supervisor.LEDTestStepMs {
		t.Fatalf("sleeps = %v", sleeps)
	}
}

func TestShutdownAfterDwell(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	_ = batteryCycle(t, s)
	tb.Tick.Set(5000)

	send(t, tb, s, byte(supervisor.CmdShutdown))
	if s.Shutdown() != supervisor.ShutdownArmed || s.ShutdownBase() != 5000 {
		t.Fatalf("state=%v base=%d", s.Shutdown(), s.ShutdownBase())
	}

	tb.Tick.Advance(supervisor.ShutdownDwellMs - 1)
	if err := s.Step(); err != nil {
		t.Fatalf("fired early: %v", err)
	}
	if !tb.HostEnable.Get() {
		t.Fatal("host cut before dwell")
	}

	tb.Tick.Advance(1)
	if err := s.Step(); !errors.Is(err, errcode.Suspended) {
		t.Fatalf("Step = %v, want suspended", err)
	}
	if tb.HostEnable.Get() || tb.Standby.Entered() != 1 {
		t.Fatalf("host=%v standby=%d", tb.HostEnable.Get(), tb.Standby.Entered())
	}
	if s.Shutdown() != supervisor.ShutdownIdle || s.ShutdownBase() != 0 {
		t.Fatalf("timer not cleared: %v base=%d", s.Shutdown(), s.ShutdownBase())
	}
}

func TestRestartOverridesShutdown(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	_ = batteryCycle(t, s)
	tb.Tick.Set(1000)

	send(t, tb, s, byte(supervisor.CmdShutdown))
	tb.Tick.Advance(10000)
	send(t, tb, s, byte(supervisor.CmdRestart))
	if s.Shutdown() != supervisor.RestartArmed || s.ShutdownBase() != 11000 {
		t.Fatalf("state=%v base=%d", s.Shutdown(), s.ShutdownBase())
	}

	// The first shutdown deadline passes without effect.
	tb.Tick.Advance(supervisor.ShutdownDwellMs - 10000)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !tb.HostEnable.Get() {
		t.Fatal("shutdown fired after being overridden")
	}

	tb.HostEnable.ResetHistory()
	tb.Tick.Advance(10000)
	if err := s.Step(); err != nil {
		t.Fatalf("restart Step: %v", err)
	}
	h := tb.HostEnable.History()
	if len(h) != 2 || h[0].Level || !h[1].Level {
		t.Fatalf("host history = %+v, want off then on", h)
	}
	if tb.Standby.Entered() != 0 || s.Suspended() {
		t.Fatal("restart entered standby")
	}
	if s.Shutdown() != supervisor.ShutdownIdle {
		t.Fatalf("state = %v", s.Shutdown())
	}
}

func TestShutdownRebasesAfterTickWrap(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	_ = batteryCycle(t, s)
	tb.Tick.Set(0xFFFF_FF00)
	send(t, tb, s, byte(supervisor.CmdShutdown))

	tb.Tick.Set(0x80) // wrapped
	if err := s.Step(); err != nil {
		t.Fatalf("fired on wrap: %v", err)
	}
	if s.Shutdown() != supervisor.ShutdownArmed || s.ShutdownBase() != 0x80 {
		t.Fatalf("state=%v base=%#x", s.Shutdown(), s.ShutdownBase())
	}

	tb.Tick.Advance(supervisor.ShutdownDwellMs)
	if err := s.Step(); !errors.Is(err, errcode.Suspended) {
		t.Fatalf("Step = %v", err)
	}
}

func TestUSBEdgeResamples(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	if s.USBPresent() {
		t.Fatal("USB present at start")
	}
	tb.USBSense.Set(true)
	if !s.USBPresent() {
		t.Fatal("rising edge missed")
	}
	tb.USBSense.Set(false)
	if s.USBPresent() {
		t.Fatal("falling edge missed")
	}
	// A repeated edge with no level change cannot desync the flag.
	s.UsbEdge(tb.USBSense.Get())
	if s.USBPresent() {
		t.Fatal("spurious edge flipped presence")
	}
}

func TestExchangeErrorKeepsRunning(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	s.ChipSelect() // arms with the current frames
	tb.Link.SetExchangeErr(errcode.Busy)
	s.ChipSelect()
	tb.Link.SetExchangeErr(nil)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
}

func TestTelemetry(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("supervisor")
	tb, s := newSupervisor(t, conn)
	tb.USBSense.Set(true)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	_ = batteryCycle(t, s)
	send(t, tb, s, byte(supervisor.CmdShutdown))

	obs := b.NewConnection("test")
	retained := func(topic bus.Topic) any {
		t.Helper()
		sub := obs.Subscribe(topic)
		defer sub.Unsubscribe()
		select {
		case m := <-sub.Channel():
			return m.Payload
		case <-time.After(time.Second):
			t.Fatalf("no retained value on %s", topic)
			return nil
		}
	}

	bv, ok := retained(supervisor.TopicBattery()).(types.BatteryValue)
	if !ok || bv.Raw != platform.SimSample || bv.Level != types.BatteryNormal {
		t.Fatalf("battery = %+v", bv)
	}
	if bv.MilliV != supervisor.RawToMilliV(platform.SimSample) {
		t.Fatalf("mV = %d", bv.MilliV)
	}
	if uv, ok := retained(supervisor.TopicUSB()).(types.USBValue); !ok || !uv.Present {
		t.Fatalf("usb = %+v", uv)
	}
	if hv, ok := retained(supervisor.TopicHost()).(types.HostPowerValue); !ok || !hv.Enabled || hv.Reason != "battery" {
		t.Fatalf("host = %+v", hv)
	}
	if sv, ok := retained(supervisor.TopicShutdown()).(types.ShutdownValue); !ok || sv.Phase != types.ShutdownArmed {
		t.Fatalf("shutdown = %+v", sv)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Raise(supervisor.EventBatteryTick)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if !tb.HostEnable.Get() {
		t.Fatal("battery tick not handled")
	}
}

func TestRunReturnsOnStandby(t *testing.T) {
	tb, s := newSupervisor(t, nil)
	tb.ADC.SetSample(100)
	s.Raise(supervisor.EventBatteryTick)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		if !errors.Is(err, errcode.Suspended) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after standby")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  uint16
		want types.BatteryLevel
	}{
		{0, types.BatteryDead},
		{supervisor.BatteryDeadThreshold, types.BatteryDead},
		{supervisor.BatteryDeadThreshold + 1, types.BatteryLow},
		{supervisor.BatteryLowThreshold, types.BatteryLow},
		{supervisor.BatteryLowThreshold + 1, types.BatteryNormal},
		{supervisor.BatteryFullThreshold, types.BatteryNormal},
		{supervisor.BatteryFullThreshold + 1, types.BatteryFull},
	}
	for _, c := range cases {
		if got := supervisor.Classify(c.raw); got != c.want {
			t.Errorf("Classify(%d) = %s, want %s", c.raw, got, c.want)
		}
	}
	if mv := supervisor.RawToMilliV(2048); mv != 3258 {
		t.Fatalf("RawToMilliV(2048) = %d", mv)
	}
	if mv := supervisor.RawToMilliV(2400); mv != 3818 {
		t.Fatalf("RawToMilliV(2400) = %d", mv)
	}
	for raw, want := range map[uint16]uint8{0: 0, 2087: 0, 2400: 61, 4095: 100} {
		if got := supervisor.ChargePercent(raw); got != want {
			t.Errorf("ChargePercent(%d) = %d, want %d", raw, got, want)
		}
	}
}
