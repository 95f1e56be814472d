package hostlink

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"pwrsup-go/errcode"
	"pwrsup-go/supervisor"
)

// Serial is an Exchanger over a UART, for boards that carry the frame on a
// serial link instead of SPI. The device answers each 4-byte request with the
// 4-byte response it had armed.
type Serial struct {
	port    serial.Port
	timeout time.Duration
}

// OpenSerial opens name at baud, 8N1.
func OpenSerial(name string, baud int, timeout time.Duration) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	_ = port.ResetInputBuffer()
	return &Serial{port: port, timeout: timeout}, nil
}

func (s *Serial) Tx(w, r []byte) error {
	if len(w) != supervisor.FrameLen {
		return errcode.ShortFrame
	}
	if _, err := s.port.Write(w); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	var buf [supervisor.FrameLen]byte
	got := 0
	deadline := time.Now().Add(s.timeout)
	for got < len(buf) {
		n, err := s.port.Read(buf[got:])
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		got += n
		// go.bug.st/serial reports a read timeout as 0, nil.
		if n == 0 && time.Now().After(deadline) {
			return &errcode.E{C: errcode.Timeout, Op: "serial_rx", Msg: fmt.Sprintf("%d of %d bytes", got, len(buf))}
		}
	}
	copy(r, buf[:])
	return nil
}

func (s *Serial) Close() error { return s.port.Close() }
