package sbhs

import (
	"os"
	"slices"
	"strconv"
	"strings"
)

// Candidates lists the USB indexes of the ttyUSB* devices currently present.
// Entries that do not end with a number are logged and skipped.
func (d *Driver) Candidates() []USB {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if d.log != nil {
			d.log.WithError(err).Errorf("Could not list %s", d.dir)
		}
		return nil
	}

	var usbs []USB
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, DevicePrefix) {
			continue
		}

		n, err := strconv.Atoi(strings.TrimPrefix(name, DevicePrefix))
		if err != nil || n < 0 {
			if d.log != nil {
				d.log.Warnf("Could not get %s", name)
			}
			continue
		}

		usbs = append(usbs, USB(n))
	}

	// ReadDir sorts by name so ttyUSB10 comes before ttyUSB2.
	slices.Sort(usbs)
	return usbs
}

// Probe connects to each usb and asks for its machine id.
// Devices failing either step are left out of the result.
//
// The probed boards are returned still connected, in the same order as the mappings,
// and the caller is responsible for disconnecting them.
func (d *Driver) Probe(usbs []USB) ([]Mapping, []*Board) {
	mappings := make([]Mapping, 0, len(usbs))
	boards := make([]*Board, 0, len(usbs))

	for _, usb := range usbs {
		b, err := d.Connect(usb)
		if err != nil {
			continue
		}

		id, err := b.MachineID()
		if err != nil {
			b.Disconnect()
			continue
		}

		if d.log != nil {
			d.log.Infof("USB %s is connected to SBHS machine id %d", usb.Path(d.dir), id)
		}

		mappings = append(mappings, Mapping{USB: usb, MachineID: id})
		boards = append(boards, b)
	}

	return mappings, boards
}

// Discover probes every candidate device.
func (d *Driver) Discover() ([]Mapping, []*Board) {
	return d.Probe(d.Candidates())
}
