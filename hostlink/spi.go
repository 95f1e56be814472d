package hostlink

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"pwrsup-go/errcode"
	"pwrsup-go/supervisor"
)

// DefaultSPIHz is the bus clock the supervisor's SPI slave is known to keep
// up with.
const DefaultSPIHz = 50000

// SPI is an Exchanger over a SPI bus. Each Tx is one chip-select period that
// clocks a request in and the armed response out.
type SPI struct {
	bus    drivers.SPI
	closer io.Closer
}

// NewSPI wraps an already configured bus.
func NewSPI(bus drivers.SPI) *SPI { return &SPI{bus: bus} }

// OpenSPI opens the named spidev port (e.g. "/dev/spidev0.0" or "SPI0.0") in
// mode 0, 8-bit words, at hz.
func OpenSPI(name string, hz int64) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %s: %w", name, err)
	}
	c, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %s: %w", name, err)
	}
	return &SPI{bus: periphBus{c}, closer: port}, nil
}

func (s *SPI) Tx(w, r []byte) error {
	if len(w) != supervisor.FrameLen || (r != nil && len(r) != supervisor.FrameLen) {
		return errcode.ShortFrame
	}
	if err := s.bus.Tx(w, r); err != nil {
		return &errcode.E{C: errcode.Error, Op: "spi_tx", Msg: err.Error(), Err: err}
	}
	return nil
}

func (s *SPI) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// periphBus adapts a periph connection to drivers.SPI.
type periphBus struct {
	c spi.Conn
}

func (b periphBus) Tx(w, r []byte) error { return b.c.Tx(w, r) }

func (b periphBus) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := b.c.Tx([]byte{w}, r[:])
	return r[0], err
}

var _ drivers.SPI = periphBus{}
