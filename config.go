package sbhsd

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Debug         bool                     `yaml:"debug"`
	Socket        string                   `yaml:"socket"`
	Listen        string                   `yaml:"listen"`
	LogFile       string                   `yaml:"log_file"`
	DeviceDir     string                   `yaml:"device_dir"`
	Monitor       Monitor                  `yaml:"monitor"`
	MQTT          MQTT                     `yaml:"mqtt"`
	BoardSettings map[string]*BoardSetting `yaml:"board_settings"`
}

type Monitor struct {
	Interval Duration `yaml:"interval"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type BoardSetting struct {
	USB             sbhs.USB         `yaml:"-"`
	Label           string           `yaml:"label"`
	FanStepUp       Duration         `yaml:"fan_step_up"`
	FanStepDown     Duration         `yaml:"fan_step_down"`
	CurvePointsYAML []map[string]int `yaml:"curve_points"`
	CurvePoints     []point          `yaml:"-"`
}

func Default() Config {
	return Config{
		Socket:    "/run/sbhsd/sbhsd.sock",
		Listen:    "127.0.0.1:1234",
		DeviceDir: "/dev",
		Monitor: Monitor{
			Interval: Duration{Duration: 2 * time.Second},
		},
		MQTT: MQTT{
			ClientID: "sbhsd",
			Topic:    "sbhs",
		},
	}
}

func Load(path string) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	err = codec.Decode(&c)
	if err != nil {
		return c, err
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	if c.Monitor.Interval.Duration <= 0 {
		return fmt.Errorf("monitor.interval: must be positive, got %s", c.Monitor.Interval)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos: must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	//

	reName := regexp.MustCompile(`^usb(\d+)$`)
	reFan := regexp.MustCompile(`^\d+%$`)
	seen := map[sbhs.USB]string{}
	for bname, board := range c.BoardSettings {
		if board == nil {
			return fmt.Errorf("%s: empty settings", bname)
		}

		match := reName.FindStringSubmatch(bname)
		if len(match) != 2 {
			return fmt.Errorf("%s: invalid name, expected usb<N>", bname)
		}
		id, err := strconv.ParseUint(match[1], 10, 16)
		if err != nil {
			return fmt.Errorf("%s: invalid number: %w", bname, err)
		}

		board.USB = sbhs.USB(id)
		if other, ok := seen[board.USB]; ok {
			return fmt.Errorf("%s: same device as %s", bname, other)
		}
		seen[board.USB] = bname

		if board.Label == "" {
			board.Label = bname
		}

		board.CurvePoints = make([]point, 0, len(board.CurvePointsYAML))

		prev := point{fan: -1, temperature: -1}
		for _, p := range board.CurvePointsYAML {
			if len(p) != 1 {
				return fmt.Errorf("%s: curve point must have exactly one fan%%: temperature entry", bname)
			}

			for fan, temperature := range p {
				if !reFan.MatchString(fan) {
					return fmt.Errorf("%s: invalid fan format %s", bname, fan)
				}

				v, err := strconv.Atoi(strings.TrimRight(fan, "%"))
				if err != nil {
					return fmt.Errorf("%s: %s: %w", bname, fan, err)
				}
				if v < sbhs.MinSetpoint || v > sbhs.MaxSetpoint {
					return fmt.Errorf("%s: %s: fan must in range [0,100]", bname, fan)
				}
				if v < prev.fan {
					return fmt.Errorf("%s: %s: fan lower than previous one", bname, fan)
				}
				if float64(temperature) < prev.temperature {
					return fmt.Errorf("%s: %s: temperature lower than previous one", bname, fan)
				}

				prev = point{fan: v, temperature: float64(temperature)}
				board.CurvePoints = append(board.CurvePoints, prev)
			}
		}
	}

	return nil
}

// Boards returns the settings indexed by USB device.
func (c Config) Boards() map[sbhs.USB]BoardSetting {
	boards := make(map[sbhs.USB]BoardSetting, len(c.BoardSettings))
	for _, b := range c.BoardSettings {
		boards[b.USB] = *b
	}
	return boards
}
