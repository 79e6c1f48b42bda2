package sbhsd

import (
	"bytes"
	"log/slog"
	"sync"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/mdouchement/logger"
	"go.bug.st/serial"
)

// boardPort answers the SBHS commands like a board would.
type boardPort struct {
	mu     sync.Mutex
	id     byte
	rx     []byte
	writes []byte
	closed bool
}

func (p *boardPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *boardPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range b {
		p.writes = append(p.writes, c)
		switch sbhs.Command(c) {
		case sbhs.CommandMachineID:
			p.rx = append(p.rx, p.id)
		case sbhs.CommandTemperature:
			p.rx = append(p.rx, 42, 5)
		}
	}
	return len(b), nil
}

func (p *boardPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rx = nil
	return nil
}

func (p *boardPort) SetReadTimeout(time.Duration) error {
	return nil
}

func (p *boardPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

func (p *boardPort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return bytes.Clone(p.writes)
}

// boardHost plugs boardPorts by device path.
type boardHost struct {
	mu     sync.Mutex
	ports  map[string]*boardPort
	opened []string
}

func (h *boardHost) open(name string, _ *serial.Mode) (sbhs.Port, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.opened = append(h.opened, name)
	p, ok := h.ports[name]
	if !ok {
		return nil, &serial.PortError{}
	}

	p.closed = false
	return p, nil
}

// fakeBoards records the calls made through the Boards interface.
type fakeBoards struct {
	mu           sync.Mutex
	mappings     []sbhs.Mapping
	temperatures map[sbhs.USB]float64
	fails        bool
	calls        []string
}

func (b *fakeBoards) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, call)
	if b.fails {
		return sbhs.ErrRejected
	}
	return nil
}

func (b *fakeBoards) Discover() []sbhs.Mapping {
	b.record("discover")
	return b.mappings
}

func (b *fakeBoards) Temperature(usb sbhs.USB) float64 {
	b.record("temperature " + usb.String())

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.temperatures[usb]
}

func (b *fakeBoards) SetHeat(usb sbhs.USB, v int) error {
	if v < sbhs.MinSetpoint || v > sbhs.MaxSetpoint {
		return sbhs.ErrInvalidSetpoint
	}
	return b.record("heat " + usb.String())
}

func (b *fakeBoards) SetFan(usb sbhs.USB, v int) error {
	if v < sbhs.MinSetpoint || v > sbhs.MaxSetpoint {
		return sbhs.ErrInvalidSetpoint
	}
	return b.record("fan " + usb.String())
}

func (b *fakeBoards) Reset(usb sbhs.USB) error {
	return b.record("reset " + usb.String())
}

func (b *fakeBoards) Disconnect(usb sbhs.USB) error {
	return b.record("disconnect " + usb.String())
}

func (b *fakeBoards) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.calls...)
}

func newBufferLogger() (logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logger.WrapSlogHandler(h), &buf
}
