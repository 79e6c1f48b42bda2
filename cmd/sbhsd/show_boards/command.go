package showboards

import (
	"fmt"
	"path/filepath"

	"github.com/CruiseDevice/sbhsd/environment"
	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

func Command() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show-boards",
		Short: "Show the connected boards and their machine id",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			driver := sbhs.NewDriver(environment.DeviceDir(dir))

			mappings, boards := driver.Discover()
			for _, b := range boards {
				defer b.Disconnect()
			}

			if len(mappings) == 0 {
				fmt.Println("No board found in", driver.Dir())
				return nil
			}

			// USB details are informative only, the enumerator is not available on every platform.
			details := map[string]*enumerator.PortDetails{}
			if ports, err := enumerator.GetDetailedPortsList(); err == nil {
				for _, p := range ports {
					details[filepath.Base(p.Name)] = p
				}
			}

			for _, m := range mappings {
				line := fmt.Sprintf("%-16s machine id %3d", m.USB.Path(driver.Dir()), m.MachineID)
				if p, ok := details[m.USB.String()]; ok && p.IsUSB {
					line += fmt.Sprintf("   VID: %s - PID: %s - SN: %s", p.VID, p.PID, p.SerialNumber)
				}
				fmt.Println(line)
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "/dev", "Directory holding the ttyUSB devices")

	return cmd
}
