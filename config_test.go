package sbhsd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sbhsd.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
debug: true
listen: 0.0.0.0:1234
log_file: /var/log/sbhsd.log
monitor:
  interval: 5s
mqtt:
  broker: tcp://localhost:1883
  qos: 1
board_settings:
  usb0:
    label: lab
    fan_step_up: 1s
    fan_step_down: 10
    curve_points:
      - 30%: 35
      - 60%: 45
      - 100%: 55
  usb3: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "/run/sbhsd/sbhsd.sock", cfg.Socket)
	assert.Equal(t, "0.0.0.0:1234", cfg.Listen)
	assert.Equal(t, "/var/log/sbhsd.log", cfg.LogFile)
	assert.Equal(t, "/dev", cfg.DeviceDir)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, MQTT{Broker: "tcp://localhost:1883", ClientID: "sbhsd", Topic: "sbhs", QoS: 1}, cfg.MQTT)

	boards := cfg.Boards()
	require.Len(t, boards, 2)

	b := boards[0]
	assert.Equal(t, sbhs.USB(0), b.USB)
	assert.Equal(t, "lab", b.Label)
	assert.Equal(t, time.Second, b.FanStepUp.Duration)
	assert.Equal(t, 10*time.Second, b.FanStepDown.Duration)
	assert.Equal(t, []point{{temperature: 35, fan: 30}, {temperature: 45, fan: 60}, {temperature: 55, fan: 100}}, b.CurvePoints)

	b = boards[3]
	assert.Equal(t, sbhs.USB(3), b.USB)
	assert.Equal(t, "usb3", b.Label)
	assert.Empty(t, b.CurvePoints)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Empty(t, cfg.Boards())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{
			name:    "interval",
			content: "monitor:\n  interval: 0s\n",
			err:     "monitor.interval",
		},
		{
			name:    "qos",
			content: "mqtt:\n  qos: 3\n",
			err:     "mqtt.qos",
		},
		{
			name:    "board name",
			content: "board_settings:\n  fan1: {}\n",
			err:     "fan1: invalid name",
		},
		{
			name:    "board number",
			content: "board_settings:\n  usb99999999: {}\n",
			err:     "usb99999999: invalid number",
		},
		{
			name:    "duplicate board",
			content: "board_settings:\n  usb1: {}\n  usb01: {}\n",
			err:     "same device as",
		},
		{
			name:    "fan format",
			content: "board_settings:\n  usb0:\n    curve_points:\n      - 30: 35\n",
			err:     "invalid fan format",
		},
		{
			name:    "fan range",
			content: "board_settings:\n  usb0:\n    curve_points:\n      - 130%: 35\n",
			err:     "fan must in range",
		},
		{
			name:    "point entries",
			content: "board_settings:\n  usb0:\n    curve_points:\n      - 30%: 35\n        40%: 45\n",
			err:     "exactly one",
		},
		{
			name:    "decreasing fan",
			content: "board_settings:\n  usb0:\n    curve_points:\n      - 60%: 35\n      - 30%: 45\n",
			err:     "fan lower than previous one",
		},
		{
			name:    "decreasing temperature",
			content: "board_settings:\n  usb0:\n    curve_points:\n      - 30%: 45\n      - 60%: 35\n",
			err:     "temperature lower than previous one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`2.5`)))
	assert.Equal(t, 2500*time.Millisecond, d.Duration)

	require.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))

	p, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2.5s"`, string(p))
}
