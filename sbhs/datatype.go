package sbhs

import (
	"fmt"
	"path/filepath"
)

type (
	Command   uint8
	MachineID uint8
	// USB is the host index of a /dev/ttyUSB<n> device.
	USB int
)

func (u USB) Path(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d", DevicePrefix, u))
}

func (u USB) String() string {
	return fmt.Sprintf("%s%d", DevicePrefix, int(u))
}

// A Mapping binds a local USB device to the machine id reported by its board.
type Mapping struct {
	USB       USB       `json:"usb_id"`
	MachineID MachineID `json:"sbhs_mac_id"`
}

// Temperature builds a reading from its integer and tenth bytes.
func Temperature(integer, tenth byte) float64 {
	return float64(integer) + 0.1*float64(tenth)
}
