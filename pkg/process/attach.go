package process

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/processstate"
)

type DiscoveryMethod string

const (
	DiscoveryMethodProcessName DiscoveryMethod = "process-name"
	DiscoveryMethodPort        DiscoveryMethod = "port"
	DiscoveryMethodPIDFile     DiscoveryMethod = "pid-file"
	DiscoveryMethodServiceName DiscoveryMethod = "service-name"
)

type DiscoveryConfig struct {
	Method DiscoveryMethod `yaml:"method"`

	// Process name discovery
	ProcessName string   `yaml:"process_name,omitempty"`
	ProcessArgs []string `yaml:"process_args,omitempty"` // Optional: match by command line args

	// Port discovery
	Port     int    `yaml:"port,omitempty"`
	Protocol string `yaml:"protocol,omitempty"` // "tcp", "udp"

	// PID file discovery
	PIDFile string `yaml:"pid_file,omitempty"`

	// Service discovery (systemd, Windows services)
	ServiceName string `yaml:"service_name,omitempty"`

	// Discovery frequency
	CheckInterval time.Duration `yaml:"check_interval,omitempty"`
}

// StdAttachCmd acquires a handle on an existing process without spawning.
// Used for unmanaged units and for reattaching to a survivor on restart.
type StdAttachCmd func(ctx context.Context) (*os.Process, io.ReadCloser, error)

// NewStdAttachCmd creates a standard attachment command function with logging
func NewStdAttachCmd(config DiscoveryConfig, id string, logger logging.Logger) StdAttachCmd {
	return func(ctx context.Context) (*os.Process, io.ReadCloser, error) {
		if ctx == nil {
			logger.Errorf("Context cannot be nil, id: %s", id)
			return nil, nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
		}

		if err := ValidateDiscoveryConfig(config); err != nil {
			logger.Errorf("Discovery configuration validation failed, id: %s, error: %v", id, err)
			return nil, nil, errors.NewValidationError("invalid discovery configuration", err).WithContext("id", id)
		}

		logger.Infof("Attaching to process, id: %s, discovery config: %+v", id, config)

		var process *os.Process
		var err error

		logger.Debugf("Starting process discovery, id: %s, method: %s", id, config.Method)
		switch config.Method {
		case DiscoveryMethodPIDFile:
			process, err = openProcessByPIDFile(config.PIDFile)
		case DiscoveryMethodProcessName:
			process, err = openProcessByName(config.ProcessName, config.ProcessArgs)
		case DiscoveryMethodPort:
			process, err = openProcessByPort(config.Port, config.Protocol)
		case DiscoveryMethodServiceName:
			process, err = openProcessByServiceName(config.ServiceName)
		default:
			logger.Errorf("Unsupported discovery method, id: %s, method: %s", id, config.Method)
			return nil, nil, errors.NewValidationError("unsupported discovery method: "+string(config.Method), nil).WithContext("id", id)
		}

		if err != nil {
			logger.Errorf("Failed to discover process, id: %s, method: %s, error: %v", id, config.Method, err)
			return nil, nil, errors.NewDiscoveryError("failed to discover process", err).WithContext("discovery_method", string(config.Method)).WithContext("id", id)
		}

		logger.Infof("Successfully attached to process, id: %s, PID: %d, discovery: %s", id, process.Pid, config.Method)

		return process, nil, nil
	}
}

// openProcessByPIDFile discovers a process by reading its PID from a file
func openProcessByPIDFile(pidFile string) (*os.Process, error) {
	// Validate PID file path
	if err := ValidatePIDFile(pidFile); err != nil {
		return nil, err
	}

	// Read PID from file
	pidBytes, err := os.ReadFile(pidFile)
	if err != nil {
		return nil, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", pidFile)
	}

	// Parse PID (trim whitespace/newlines)
	pidStr := strings.TrimSpace(string(pidBytes))
	if pidStr == "" {
		return nil, errors.NewValidationError("PID file is empty", nil).WithContext("pid_file", pidFile)
	}

	pid, err := ValidatePID(pidStr)
	if err != nil {
		return nil, errors.NewValidationError("invalid PID in file", err).WithContext("pid_file", pidFile).WithContext("pid_content", pidStr)
	}

	return openProcessAlive(pid)
}

// openProcessByName discovers a process by its executable name and optional arguments
func openProcessByName(processName string, processArgs []string) (*os.Process, error) {
	pid, err := discoverPIDByName(processName, processArgs)
	if err != nil {
		return nil, err
	}
	return openProcessAlive(pid)
}

// openProcessByPort discovers the process that owns the listening socket on the port
func openProcessByPort(port int, protocol string) (*os.Process, error) {
	pid, err := discoverPIDByPort(port, protocol)
	if err != nil {
		return nil, err
	}
	return openProcessAlive(pid)
}

// openProcessByServiceName discovers a process through the service manager
func openProcessByServiceName(serviceName string) (*os.Process, error) {
	pid, err := discoverPIDByService(serviceName)
	if err != nil {
		return nil, err
	}
	return openProcessAlive(pid)
}

// openProcessAlive resolves a PID to a handle, confirming the process exists.
func openProcessAlive(pid int) (*os.Process, error) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil, errors.NewProcessError("failed to find process", err).WithContext("pid", pid)
	}

	running, err := processstate.IsProcessRunning(pid)
	if !running {
		return nil, errors.NewProcessError("process is not running", err).WithContext("pid", pid)
	}

	return process, nil
}
