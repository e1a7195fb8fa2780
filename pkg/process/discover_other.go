//go:build !linux

package process

import (
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
)

// Name, port, and service discovery read the /proc filesystem and the
// systemd manager. PID file discovery remains the portable method.

func discoverPIDByName(processName string, processArgs []string) (int, error) {
	return 0, errors.NewDiscoveryError("process discovery by name is only supported on Linux", nil)
}

func discoverPIDByPort(port int, protocol string) (int, error) {
	return 0, errors.NewDiscoveryError("process discovery by port is only supported on Linux", nil)
}

func discoverPIDByService(serviceName string) (int, error) {
	return 0, errors.NewDiscoveryError("process discovery by service name is only supported on Linux", nil)
}
