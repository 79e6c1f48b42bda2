package sbhs

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect is returned when the serial device cannot be opened.
	ErrConnect = errors.New("could not connect")
	// ErrIO wraps any read or write failure on an open link.
	ErrIO = errors.New("i/o failure")
	// ErrTimeout is returned when fewer bytes than requested arrived before the read timeout.
	ErrTimeout = fmt.Errorf("%w: read timeout", ErrIO)
	// ErrClosed is returned when a command is issued on a link that is not open.
	ErrClosed = fmt.Errorf("%w: link closed", ErrIO)
	// ErrNoMachineID is returned when the identity exchange did not complete.
	ErrNoMachineID = errors.New("no machine id received")
	// ErrRejected is returned when a setpoint was not applied.
	ErrRejected = errors.New("setpoint rejected")
	// ErrInvalidSetpoint is returned, before anything is sent, for values outside [0,100].
	ErrInvalidSetpoint = fmt.Errorf("%w: value must be in range [%d,%d]", ErrRejected, MinSetpoint, MaxSetpoint)
)
