package sbhs

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port used by a Link.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// An Opener opens the named serial device with the given line parameters.
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenSerial is the Opener backed by the OS serial driver.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// A Link is the serial line to one board.
// It must not be used by several goroutines at once.
type Link struct {
	name    string
	port    Port
	timeout time.Duration
}

// OpenLink opens name at 9600 8N1 with a 2 seconds read timeout.
// It does not retry.
func OpenLink(name string, open Opener) (*Link, error) {
	if open == nil {
		open = OpenSerial
	}

	port, err := open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrConnect, name, reason(err))
	}

	if err = port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: read timeout: %w", ErrConnect, name, err)
	}

	return &Link{
		name:    name,
		port:    port,
		timeout: ReadTimeout,
	}, nil
}

func (l *Link) Name() string {
	return l.name
}

func (l *Link) IsOpen() bool {
	return l.port != nil
}

// FlushInput discards buffered input. Failures are ignored.
func (l *Link) FlushInput() {
	if l.port == nil {
		return
	}

	_ = l.port.ResetInputBuffer()
}

func (l *Link) WriteByte(b byte) error {
	if l.port == nil {
		return ErrClosed
	}

	n, err := l.port.Write([]byte{b})
	if err != nil {
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: write: %d of 1 byte", ErrIO, n)
	}

	return nil
}

// ReadBytes blocks until n bytes are received or the read timeout elapses.
// A short read is reported as ErrTimeout and the partial bytes are dropped.
func (l *Link) ReadBytes(n int) ([]byte, error) {
	if l.port == nil {
		return nil, ErrClosed
	}

	buf := make([]byte, n)
	deadline := time.Now().Add(l.timeout)

	var read int
	for read < n {
		m, err := l.port.Read(buf[read:])
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", ErrIO, err)
		}

		read += m
		if read < n && (m == 0 || !time.Now().Before(deadline)) {
			// go.bug.st/serial returns 0 bytes without error once the read timeout is reached.
			return nil, fmt.Errorf("%w: %d of %d bytes", ErrTimeout, read, n)
		}
	}

	return buf, nil
}

// Close releases the serial device. Closing a closed link is a no-op.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}

	port := l.port
	l.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrIO, err)
	}

	return nil
}

func reason(err error) string {
	perr, ok := err.(*serial.PortError)
	if !ok {
		return err.Error()
	}

	switch perr.Code() {
	case serial.PortNotFound:
		return "port not found"
	case serial.PortBusy:
		return "port busy"
	case serial.PermissionDenied:
		return "permission denied"
	case serial.InvalidSerialPort:
		return "not a serial port"
	default:
		return perr.Error()
	}
}
