package sbhsd

import (
	"sync"

	"github.com/CruiseDevice/sbhsd/sbhs"
)

// A Session runs each command on a freshly connected board and disconnects it right after.
// Commands targeting the same device are serialized, other devices run in parallel.
type Session struct {
	driver *sbhs.Driver
	sync   sync.Mutex
	locks  map[sbhs.USB]*sync.Mutex
}

func NewSession(driver *sbhs.Driver) *Session {
	return &Session{
		driver: driver,
		locks:  make(map[sbhs.USB]*sync.Mutex),
	}
}

func (s *Session) lock(usb sbhs.USB) func() {
	s.sync.Lock()
	l, ok := s.locks[usb]
	if !ok {
		l = &sync.Mutex{}
		s.locks[usb] = l
	}
	s.sync.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Session) do(usb sbhs.USB, fn func(b *sbhs.Board) error) error {
	defer s.lock(usb)()

	b, err := s.driver.Connect(usb)
	if err != nil {
		return err
	}
	defer b.Disconnect()

	return fn(b)
}

// Discover maps every present board to its machine id.
// Probed boards are disconnected once identified.
func (s *Session) Discover() []sbhs.Mapping {
	mappings := []sbhs.Mapping{}
	for _, usb := range s.driver.Candidates() {
		unlock := s.lock(usb)
		m, boards := s.driver.Probe([]sbhs.USB{usb})
		for _, b := range boards {
			b.Disconnect()
		}
		unlock()

		mappings = append(mappings, m...)
	}

	return mappings
}

// Temperature returns 0.0 when the board cannot be reached.
func (s *Session) Temperature(usb sbhs.USB) float64 {
	var temp float64
	s.do(usb, func(b *sbhs.Board) error {
		temp = b.Temperature()
		return nil
	})
	return temp
}

func (s *Session) SetHeat(usb sbhs.USB, v int) error {
	return s.do(usb, func(b *sbhs.Board) error {
		return b.SetHeat(v)
	})
}

func (s *Session) SetFan(usb sbhs.USB, v int) error {
	return s.do(usb, func(b *sbhs.Board) error {
		return b.SetFan(v)
	})
}

func (s *Session) Reset(usb sbhs.USB) error {
	return s.do(usb, func(b *sbhs.Board) error {
		return b.Reset()
	})
}

func (s *Session) Disconnect(usb sbhs.USB) error {
	return s.do(usb, func(b *sbhs.Board) error {
		return b.Disconnect()
	})
}
