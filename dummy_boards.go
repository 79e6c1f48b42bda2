package sbhsd

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/mdouchement/logger"
)

// DummyBoards should only be used for dev & tests.
type DummyBoards struct {
	sync   sync.Mutex
	boards map[sbhs.USB]*dummyBoard
	log    logger.Logger
}

type dummyBoard struct {
	id          sbhs.MachineID
	heat        int
	fan         int
	temperature float64
}

const dummyAmbient = 25.0

// NewDummyBoards plugs n boards on ttyUSB0..ttyUSB<n-1> with machine ids 10, 20, ...
func NewDummyBoards(n int) *DummyBoards {
	c := &DummyBoards{
		boards: make(map[sbhs.USB]*dummyBoard, n),
	}
	for i := range n {
		c.boards[sbhs.USB(i)] = &dummyBoard{
			id:          sbhs.MachineID((i + 1) * 10),
			fan:         sbhs.MaxSetpoint,
			temperature: dummyAmbient,
		}
	}

	return c
}

func (c *DummyBoards) SetLogger(l logger.Logger) {
	c.log = l
}

func (c *DummyBoards) board(usb sbhs.USB) (*dummyBoard, error) {
	b, ok := c.boards[usb]
	if !ok {
		return nil, fmt.Errorf("%w: %s: port not found", sbhs.ErrConnect, usb)
	}
	return b, nil
}

func (c *DummyBoards) Discover() []sbhs.Mapping {
	c.sync.Lock()
	defer c.sync.Unlock()

	mappings := make([]sbhs.Mapping, 0, len(c.boards))
	for _, usb := range slices.Sorted(maps.Keys(c.boards)) {
		mappings = append(mappings, sbhs.Mapping{USB: usb, MachineID: c.boards[usb].id})
	}

	return mappings
}

// Temperature moves the board temperature toward the equilibrium of its heat and fan setpoints.
func (c *DummyBoards) Temperature(usb sbhs.USB) float64 {
	c.sync.Lock()
	defer c.sync.Unlock()

	b, err := c.board(usb)
	if err != nil {
		if c.log != nil {
			c.log.WithError(err).Errorf("Cannot read Temperature for %s", usb)
		}
		return 0
	}

	target := dummyAmbient + 0.6*float64(b.heat) - 0.15*float64(b.fan)*float64(b.heat)/100
	b.temperature += (target - b.temperature) / 4
	b.temperature = math.Max(b.temperature, dummyAmbient)

	// Same precision as the hardware: one decimal.
	return math.Round(b.temperature*10) / 10
}

func (c *DummyBoards) SetHeat(usb sbhs.USB, v int) error {
	return c.set(usb, v, func(b *dummyBoard) { b.heat = v })
}

func (c *DummyBoards) SetFan(usb sbhs.USB, v int) error {
	return c.set(usb, v, func(b *dummyBoard) { b.fan = v })
}

func (c *DummyBoards) set(usb sbhs.USB, v int, apply func(b *dummyBoard)) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	b, err := c.board(usb)
	if err != nil {
		return err
	}
	if v < sbhs.MinSetpoint || v > sbhs.MaxSetpoint {
		return sbhs.ErrInvalidSetpoint
	}

	apply(b)
	return nil
}

func (c *DummyBoards) Reset(usb sbhs.USB) error {
	if err := c.SetHeat(usb, sbhs.MinSetpoint); err != nil {
		return err
	}
	return c.SetFan(usb, sbhs.MaxSetpoint)
}

func (c *DummyBoards) Disconnect(usb sbhs.USB) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	_, err := c.board(usb)
	return err
}
