package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/CruiseDevice/sbhsd"
	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/spf13/cobra"
)

// Commands returns one command per /experiment route.
func Commands(client *http.Client) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "boards",
			Short: "List the boards and their machine id",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				var mappings []sbhs.Mapping
				if err := get(client, "/experiment/get_machine_ids", &mappings); err != nil {
					return err
				}

				for _, m := range mappings {
					fmt.Printf("%-10s machine id %3d\n", m.USB, m.MachineID)
				}
				return nil
			},
		},
		{
			Use:   "temp <usb>",
			Short: "Read the temperature of a board",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				usb, err := usbArg(args[0])
				if err != nil {
					return err
				}

				var r sbhsd.TemperatureResponse
				if err := get(client, fmt.Sprintf("/experiment/get_temp/%d", usb), &r); err != nil {
					return err
				}

				fmt.Printf("%.1f°C\n", r.Temp)
				return nil
			},
		},
		setpoint(client, "set-heat", "Set the heater output in percent", "set_heat"),
		setpoint(client, "set-fan", "Set the fan speed in percent", "set_fan"),
		lifecycle(client, "reset", "Turn the heater off and the fan full speed", "reset"),
		lifecycle(client, "disconnect", "Close the serial connection of a board", "disconnect"),
	}
}

func setpoint(client *http.Client, use, short, route string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <usb> <percent>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			usb, err := usbArg(args[0])
			if err != nil {
				return err
			}

			v, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("percent: %w", err)
			}

			return do(client, fmt.Sprintf("/experiment/%s/%d/%d", route, usb, v))
		},
	}
}

func lifecycle(client *http.Client, use, short, route string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <usb>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			usb, err := usbArg(args[0])
			if err != nil {
				return err
			}

			return do(client, fmt.Sprintf("/experiment/%s/%d", route, usb))
		},
	}
}

func do(client *http.Client, path string) error {
	var r sbhsd.Response
	if err := get(client, path, &r); err != nil {
		return err
	}

	if !r.Status {
		return errors.New(r.Message)
	}

	fmt.Println(r.Message)
	return nil
}

func usbArg(arg string) (sbhs.USB, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("usb: invalid index %q", arg)
	}
	return sbhs.USB(v), nil
}

func get(client *http.Client, path string, v any) error {
	resp, err := client.Get("http://unix" + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("bad status: %s body=%q", resp.Status, string(b))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
