package sbhsd

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"go.yaml.in/yaml/v4"
)

// Boards runs single commands against boards identified by their USB index.
type Boards interface {
	Discover() []sbhs.Mapping
	Temperature(usb sbhs.USB) float64
	SetHeat(usb sbhs.USB, v int) error
	SetFan(usb sbhs.USB, v int) error
	Reset(usb sbhs.USB) error
	Disconnect(usb sbhs.USB) error
}

type Shaper interface {
	Eval(readings []Reading) map[sbhs.USB]Evaluation
}

type Publisher interface {
	Publish(r Reading) error
	Close()
}

// A Reading is the last known state of a monitored board.
type Reading struct {
	USB         sbhs.USB  `json:"usb_id"`
	Label       string    `json:"label"`
	Temperature float64   `json:"temperature"`
	Fan         *int      `json:"fan,omitempty"`
	Heat        *int      `json:"heat,omitempty"`
	ReadAt      time.Time `json:"read_at"`
}

// An Evaluation is the fan setpoint a curve derived from a reading.
type Evaluation struct {
	USB         sbhs.USB
	EvaluedAt   time.Time
	Label       string
	Fan         int
	Temperature float64
}

// A Response is the payload of the setpoint and lifecycle routes.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type TemperatureResponse struct {
	Temp float64 `json:"temp"`
}

func ToPtr[T any](v T) *T {
	return &v
}

type point struct {
	temperature float64
	fan         int
}

type segment struct {
	temperature float64
	eval        func(float64) float64
}

const (
	eventUpdateReading   = "update-reading"
	eventUpdateSetpoint  = "update-setpoint"
	eventWatch           = "watch"
	eventRefreshWatchers = "refresh-watchers"
	eventUnwatch         = "unwatch"
)

type event struct {
	name      string
	reading   Reading
	usb       sbhs.USB
	fan       *int
	heat      *int
	monitorID int64
	monitor   chan<- []byte
}

func genID() int64 {
	time.Sleep(time.Nanosecond)
	return time.Now().UnixNano()
}

// Duration reads "2s"-like strings, or a plain number of seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var seconds float64
		if json.Unmarshal(data, &seconds) != nil {
			return err
		}
		d.Duration = time.Duration(seconds * float64(time.Second))
		return nil
	}

	return d.parse(str)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	return d.parse(str)
}

func (d *Duration) parse(str string) error {
	if str == "" {
		return nil
	}

	if seconds, err := strconv.ParseFloat(str, 64); err == nil {
		d.Duration = time.Duration(seconds * float64(time.Second))
		return nil
	}

	var err error
	d.Duration, err = time.ParseDuration(str)
	return err
}
