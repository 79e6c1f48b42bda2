package environment

import (
	"os"
	"path/filepath"
)

// KeyHostDev overrides the directory where serial devices are looked up,
// e.g. when running in a container with the host /dev mounted elsewhere.
const KeyHostDev = "HOST_DEV"

func GetEnvPath(key, fallback string, elem ...string) (v string) {
	v = os.Getenv(key)
	if v == "" {
		v = fallback
	}

	return filepath.Join(append([]string{v}, elem...)...)
}

// DeviceDir returns the serial device directory, configured unless overridden by HOST_DEV.
func DeviceDir(configured string) string {
	if configured == "" {
		configured = "/dev"
	}
	return GetEnvPath(KeyHostDev, configured)
}
