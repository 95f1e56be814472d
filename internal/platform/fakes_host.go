//go:build !rp2040 && !rp2350

package platform

import (
	"sync"
	"time"

	"pwrsup-go/errcode"
	"pwrsup-go/supervisor"

	"tinygo.org/x/drivers"
)

// Edge selects which pin transitions fire an IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// ----------------------------- GPIO (host) -----------------------------------

// PinEvent is one write observed on a FakePin.
type PinEvent struct {
	Output bool // pin was in output mode when written
	Level  bool
}

// FakePin implements supervisor.Pin with IRQ support for host-side tests.
// Set on an input pin models the external line changing.
type FakePin struct {
	mu       sync.RWMutex
	name     string
	level    bool
	modeOut  bool
	pull     supervisor.Pull
	irqEdge  Edge
	irqFunc  func()
	debounce time.Duration
	lastIRQ  time.Time
	history  []PinEvent
}

func NewFakePin(name string) *FakePin { return &FakePin{name: name} }

func (p *FakePin) ConfigureInput(pull supervisor.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.history = append(p.history, PinEvent{Output: true, Level: initial})
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	p.history = append(p.history, PinEvent{Output: p.modeOut, Level: level})
	edge := edgeFrom(old, level)
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edge)
	deb := p.debounce
	last := p.lastIRQ
	now := time.Now()
	if want && (deb == 0 || now.Sub(last) >= deb) {
		p.lastIRQ = now
		p.mu.Unlock()
		if irq != nil {
			irq()
		}
		return
	}
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Name() string { return p.name }

// IsOutput reports the current pin mode.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

// History returns a copy of every write since the last ResetHistory.
func (p *FakePin) History() []PinEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PinEvent(nil), p.history...)
}

func (p *FakePin) ResetHistory() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

// SetIRQ installs an ISR-style callback run after the level changes.
func (p *FakePin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// SetDebounce suppresses IRQs closer together than d.
func (p *FakePin) SetDebounce(d time.Duration) {
	p.mu.Lock()
	p.debounce = d
	p.mu.Unlock()
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	switch cfg {
	case EdgeBoth:
		return seen == EdgeRising || seen == EdgeFalling
	default:
		return cfg != EdgeNone && cfg == seen
	}
}

// ----------------------------- ADC (host) ------------------------------------

// FakeADC completes every conversion with Sample unless Stuck is set.
type FakeADC struct {
	mu       sync.Mutex
	sample   uint16
	stuck    bool
	running  bool
	startErr error
	starts   int
	stops    int
}

func NewFakeADC(sample uint16) *FakeADC { return &FakeADC{sample: sample} }

func (a *FakeADC) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return a.startErr
	}
	a.running = true
	a.starts++
	return nil
}

func (a *FakeADC) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running && !a.stuck
}

func (a *FakeADC) Value() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sample
}

func (a *FakeADC) Stop() {
	a.mu.Lock()
	a.running = false
	a.stops++
	a.mu.Unlock()
}

// SetSample sets the value the next conversion reports.
func (a *FakeADC) SetSample(v uint16) {
	a.mu.Lock()
	a.sample = v
	a.mu.Unlock()
}

// SetStuck makes conversions never complete.
func (a *FakeADC) SetStuck(stuck bool) {
	a.mu.Lock()
	a.stuck = stuck
	a.mu.Unlock()
}

// SetStartErr makes Start fail with err (nil clears it).
func (a *FakeADC) SetStartErr(err error) {
	a.mu.Lock()
	a.startErr = err
	a.mu.Unlock()
}

// Counts returns how many conversions were started and stopped.
func (a *FakeADC) Counts() (starts, stops int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts, a.stops
}

// ----------------------------- Tick (host) -----------------------------------

// FakeClock is a manually driven tick. Sleep advances it instead of blocking.
type FakeClock struct {
	mu     sync.Mutex
	ms     uint32
	sleeps []uint32
}

func NewFakeClock(start uint32) *FakeClock { return &FakeClock{ms: start} }

func (c *FakeClock) Millis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *FakeClock) Sleep(ms uint32) {
	c.mu.Lock()
	c.ms += ms
	c.sleeps = append(c.sleeps, ms)
	c.mu.Unlock()
}

func (c *FakeClock) Set(ms uint32) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

func (c *FakeClock) Advance(ms uint32) {
	c.mu.Lock()
	c.ms += ms
	c.mu.Unlock()
}

// Sleeps returns every Sleep duration seen so far.
func (c *FakeClock) Sleeps() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.sleeps...)
}

// ----------------------------- Standby (host) --------------------------------

// FakeStandby records standby entry. Enter returns immediately.
type FakeStandby struct {
	mu      sync.Mutex
	armed   bool
	entered int
}

func (s *FakeStandby) EnableWake() error {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
	return nil
}

func (s *FakeStandby) Enter() {
	s.mu.Lock()
	s.entered++
	s.mu.Unlock()
	println("[standby] host build: suspended")
}

func (s *FakeStandby) WakeArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *FakeStandby) Entered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entered
}

// ----------------------------- Link (host) -----------------------------------

// FakeLink plays the host side of the 4-byte exchange in-process. It also
// satisfies drivers.SPI so host clients can talk to it directly.
type FakeLink struct {
	mu         sync.Mutex
	tx, rx     *supervisor.Frame
	chipSelect func()
	done       func()
	err        error
}

var _ drivers.SPI = (*FakeLink)(nil)

// Exchange arms the next transfer with the supervisor's frames.
func (l *FakeLink) Exchange(tx, rx *supervisor.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.tx, l.rx = tx, rx
	return nil
}

// SetExchangeErr makes Exchange fail with err (nil clears it).
func (l *FakeLink) SetExchangeErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *FakeLink) hook(chipSelect, done func()) {
	l.mu.Lock()
	l.chipSelect, l.done = chipSelect, done
	l.mu.Unlock()
}

// Transact runs one exchange: chip-select edge, req clocked in while the armed
// response is clocked out, then the completion interrupt. It returns what the
// host would have read.
func (l *FakeLink) Transact(req supervisor.Frame) (supervisor.Frame, error) {
	l.mu.Lock()
	cs := l.chipSelect
	l.mu.Unlock()
	if cs != nil {
		cs()
	}

	l.mu.Lock()
	if l.tx == nil || l.rx == nil {
		l.mu.Unlock()
		return supervisor.Frame{}, &errcode.E{C: errcode.Busy, Op: "transact", Msg: "transfer not armed"}
	}
	resp := *l.tx
	*l.rx = req
	done := l.done
	l.mu.Unlock()

	if done != nil {
		done()
	}
	return resp, nil
}

// Tx implements drivers.SPI for whole-frame transfers.
func (l *FakeLink) Tx(w, r []byte) error {
	if len(w) != supervisor.FrameLen || (r != nil && len(r) != supervisor.FrameLen) {
		return errcode.ShortFrame
	}
	var req supervisor.Frame
	copy(req[:], w)
	resp, err := l.Transact(req)
	if err != nil {
		return err
	}
	copy(r, resp[:])
	return nil
}

// Transfer implements drivers.SPI. Single-byte transfers are not framed.
func (l *FakeLink) Transfer(b byte) (byte, error) { return 0, errcode.Unsupported }
