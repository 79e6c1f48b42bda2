package sbhs

import (
	"time"

	"go.bug.st/serial"
)

const (
	CommandMachineID   Command = 252
	CommandFan         Command = 253
	CommandHeat        Command = 254
	CommandTemperature Command = 255
)

const (
	BaudRate    = 9600
	DataBits    = 8
	ReadTimeout = 2 * time.Second

	// SettleDelay is the gap the firmware needs between a command byte and its payload.
	SettleDelay = 500 * time.Millisecond

	MinSetpoint = 0
	MaxSetpoint = 100

	DevicePrefix = "ttyUSB"
)

var mode = &serial.Mode{
	BaudRate: BaudRate,
	DataBits: DataBits,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}
