package sbhs

import (
	"fmt"
	"time"

	"github.com/mdouchement/logger"
)

// A Driver opens boards located in a device directory (usually /dev).
type Driver struct {
	dir   string
	open  Opener
	sleep func(time.Duration)
	log   logger.Logger
}

func NewDriver(dir string) *Driver {
	return &Driver{
		dir:   dir,
		open:  OpenSerial,
		sleep: time.Sleep,
	}
}

// SetOpener replaces the OS serial driver, mostly for tests.
func (d *Driver) SetOpener(open Opener) {
	d.open = open
}

func (d *Driver) SetLogger(l logger.Logger) {
	d.log = l
}

func (d *Driver) Dir() string {
	return d.dir
}

// Connect opens the serial link of the board plugged on usb.
// Every failure is reported as ErrConnect, including indexes that do not exist.
func (d *Driver) Connect(usb USB) (*Board, error) {
	b := &Board{
		usb:   usb,
		log:   d.log,
		sleep: d.sleep,
	}

	if usb < 0 {
		err := fmt.Errorf("%w: %s: invalid device index", ErrConnect, usb.Path(d.dir))
		b.errorf(err, "Serial connection with %s failed", usb.Path(d.dir))
		return nil, err
	}

	var err error
	b.link, err = OpenLink(usb.Path(d.dir), d.open)
	if err != nil {
		b.errorf(err, "Serial connection with %s failed", usb.Path(d.dir))
		return nil, err
	}

	return b, nil
}

// A Board speaks the SBHS protocol over its own Link.
//
// Commands are blocking request/response exchanges and a Board
// must not be shared between goroutines.
type Board struct {
	usb        USB
	link       *Link
	log        logger.Logger
	sleep      func(time.Duration)
	machineID  MachineID
	identified bool
}

func (b *Board) USB() USB {
	return b.usb
}

func (b *Board) Connected() bool {
	return b.link != nil && b.link.IsOpen()
}

// Identity returns the machine id recorded by the last successful MachineID call.
func (b *Board) Identity() (MachineID, bool) {
	return b.machineID, b.identified
}

// MachineID asks the board for its identity byte.
func (b *Board) MachineID() (MachineID, error) {
	b.link.FlushInput()

	err := b.link.WriteByte(byte(CommandMachineID))
	if err != nil {
		err = fmt.Errorf("machine_id: %w: %w", ErrNoMachineID, err)
		b.errorf(err, "No Machine ID received from %s", b.name())
		return 0, err
	}

	b.sleep(SettleDelay)

	p, err := b.link.ReadBytes(1)
	if err != nil {
		err = fmt.Errorf("machine_id: %w: %w", ErrNoMachineID, err)
		b.errorf(err, "No Machine ID received from %s", b.name())
		return 0, err
	}

	b.machineID = MachineID(p[0])
	b.identified = true
	b.infof("Mapped %s to Mac ID %d", b.name(), b.machineID)

	return b.machineID, nil
}

// Temperature reads the board temperature in °C.
// Any failure is logged and reported as a 0.0 reading.
func (b *Board) Temperature() float64 {
	b.link.FlushInput()

	err := b.link.WriteByte(byte(CommandTemperature))
	if err != nil {
		b.errorf(err, "Cannot read Temperature for %s", b.name())
		return 0
	}

	p, err := b.link.ReadBytes(2)
	if err != nil {
		b.errorf(err, "Cannot read Temperature for %s", b.name())
		return 0
	}

	return Temperature(p[0], p[1])
}

// SetHeat sets the heater output in percent.
func (b *Board) SetHeat(v int) error {
	if err := b.set(CommandHeat, v); err != nil {
		return fmt.Errorf("set_heat: %w", err)
	}
	return nil
}

// SetFan sets the fan speed in percent.
func (b *Board) SetFan(v int) error {
	if err := b.set(CommandFan, v); err != nil {
		return fmt.Errorf("set_fan: %w", err)
	}
	return nil
}

// Reset turns the heater off and the fan to full speed.
// The fan is left untouched when the heater command fails.
func (b *Board) Reset() error {
	if err := b.SetHeat(MinSetpoint); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if err := b.SetFan(MaxSetpoint); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	return nil
}

// Disconnect closes the serial link. Setpoints are left as is on the board.
func (b *Board) Disconnect() error {
	if b.link == nil {
		return nil
	}

	if err := b.link.Close(); err != nil {
		b.errorf(err, "Cannot close Serial connection with %s", b.name())
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

func (b *Board) set(command Command, v int) error {
	label := "heat"
	if command == CommandFan {
		label = "Fan speed"
	}

	if v < MinSetpoint || v > MaxSetpoint {
		b.errorf(ErrInvalidSetpoint, "%s tried setting %s %d%%", b.name(), label, v)
		return ErrInvalidSetpoint
	}

	err := b.link.WriteByte(byte(command))
	if err != nil {
		b.errorf(err, "Cannot set %s for %s", label, b.name())
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	b.sleep(SettleDelay)

	err = b.link.WriteByte(byte(v))
	if err != nil {
		b.errorf(err, "Cannot set %s for %s", label, b.name())
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	return nil
}

func (b *Board) name() string {
	if b.identified {
		return fmt.Sprintf("%s (Machine ID %d)", b.path(), b.machineID)
	}
	return b.path()
}

func (b *Board) path() string {
	if b.link != nil {
		return b.link.Name()
	}
	return b.usb.String()
}

func (b *Board) infof(format string, args ...any) {
	if b.log == nil {
		return
	}
	b.log.Infof(format, args...)
}

func (b *Board) errorf(err error, format string, args ...any) {
	if b.log == nil {
		return
	}
	b.log.WithError(err).Errorf(format, args...)
}
