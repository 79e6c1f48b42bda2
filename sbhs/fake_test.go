package sbhs

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mdouchement/logger"
	"go.bug.st/serial"
)

var errBroken = errors.New("broken pipe")

// fakePort emulates a board: writing a command byte queues its canned response.
type fakePort struct {
	mu        sync.Mutex
	rx        []byte
	responses map[byte][]byte
	writes    []byte
	failWrite int // fails the nth write, 1-based
	resets    int
	timeout   time.Duration
	closed    int
}

func newFakePort(responses map[byte][]byte) *fakePort {
	return &fakePort{responses: responses}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.rx) == 0 {
		return 0, nil // read timeout
	}

	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range b {
		if p.failWrite > 0 && len(p.writes)+1 == p.failWrite {
			return 0, errBroken
		}

		p.writes = append(p.writes, c)
		p.rx = append(p.rx, p.responses[c]...)
	}
	return len(b), nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resets++
	p.rx = nil
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

type fakeHost struct {
	ports map[string]*fakePort
	modes []*serial.Mode
}

func (h *fakeHost) open(name string, mode *serial.Mode) (Port, error) {
	h.modes = append(h.modes, mode)

	p, ok := h.ports[name]
	if !ok {
		return nil, errors.New("no such file or directory")
	}
	return p, nil
}

func newTestDriver(dir string, ports map[string]*fakePort) (*Driver, *fakeHost, *[]time.Duration) {
	host := &fakeHost{ports: ports}
	slept := &[]time.Duration{}

	d := NewDriver(dir)
	d.SetOpener(host.open)
	d.sleep = func(delay time.Duration) {
		*slept = append(*slept, delay)
	}

	return d, host, slept
}

func newBufferLogger() (logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logger.WrapSlogHandler(h), &buf
}
