//go:build linux

package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
)

// discoverPIDByName scans /proc for a process whose comm or command line
// matches. When several processes match, the lowest PID wins: that is the
// supervisor parent rather than a forked child.
func discoverPIDByName(processName string, processArgs []string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, errors.NewIOError("failed to read /proc", err)
	}

	lowerName := strings.ToLower(processName)
	selfPID := os.Getpid()
	parentPID := os.Getppid()

	bestPID := 0
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		// Never match the master itself or its parent shell
		if pid == selfPID || pid == parentPID {
			continue
		}

		if !processMatchesName(pid, lowerName, processArgs) {
			continue
		}
		if bestPID == 0 || pid < bestPID {
			bestPID = pid
		}
	}

	if bestPID == 0 {
		return 0, errors.NewDiscoveryError(fmt.Sprintf("no running process named %q", processName), nil)
	}
	return bestPID, nil
}

func processMatchesName(pid int, lowerName string, processArgs []string) bool {
	procDir := filepath.Join("/proc", strconv.Itoa(pid))

	matched := false
	if comm, err := os.ReadFile(filepath.Join(procDir, "comm")); err == nil {
		if strings.Contains(strings.ToLower(strings.TrimSpace(string(comm))), lowerName) {
			matched = true
		}
	}

	// cmdline is NUL-separated
	cmdlineBytes, err := os.ReadFile(filepath.Join(procDir, "cmdline"))
	if err != nil && !matched {
		return false
	}
	cmdline := strings.ReplaceAll(string(cmdlineBytes), "\x00", " ")
	if !matched && !strings.Contains(strings.ToLower(cmdline), lowerName) {
		return false
	}

	// Optional argument filtering narrows same-name candidates
	for _, arg := range processArgs {
		if !strings.Contains(cmdline, arg) {
			return false
		}
	}
	return true
}

// discoverPIDByPort resolves the process that owns the socket bound to the
// port: collect matching socket inodes from /proc/net, then walk /proc/*/fd
// symlinks until one points at socket:[inode].
func discoverPIDByPort(port int, protocol string) (int, error) {
	inodes, err := findSocketInodes(port, protocol)
	if err != nil {
		return 0, err
	}

	bestPID := 0
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, errors.NewIOError("failed to read /proc", err)
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inode := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			if inodes[inode] {
				// Lowest PID is the listener, not a forked child
				if bestPID == 0 || pid < bestPID {
					bestPID = pid
				}
			}
		}
	}

	if bestPID == 0 {
		return 0, errors.NewDiscoveryError(fmt.Sprintf("socket found but owning process not detected, port: %d", port), nil)
	}
	return bestPID, nil
}

const tcpListenState = "0A"

func findSocketInodes(port int, protocol string) (map[string]bool, error) {
	var files []string
	switch protocol {
	case "udp":
		files = []string{"/proc/net/udp", "/proc/net/udp6"}
	default:
		files = []string{"/proc/net/tcp", "/proc/net/tcp6"}
	}

	inodes := make(map[string]bool)
	targetHex := fmt.Sprintf("%04X", port)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		lines := strings.Split(string(data), "\n")
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}

			localAddr := fields[1]
			parts := strings.Split(localAddr, ":")
			if len(parts) != 2 || parts[1] != targetHex {
				continue
			}
			// TCP sockets must be listeners; UDP has no listen state
			if protocol != "udp" && fields[3] != tcpListenState {
				continue
			}
			inodes[fields[9]] = true
		}
	}

	if len(inodes) == 0 {
		return nil, errors.NewDiscoveryError(fmt.Sprintf("no process listening on port %d", port), nil)
	}
	return inodes, nil
}

// discoverPIDByService asks systemd for the main PID of a service.
func discoverPIDByService(serviceName string) (int, error) {
	svcName := serviceName
	if !strings.HasSuffix(svcName, ".service") {
		svcName += ".service"
	}

	out, err := exec.Command("systemctl", "show", "-p", "MainPID", "--value", "--", svcName).Output()
	if err != nil {
		return 0, errors.NewDiscoveryError(fmt.Sprintf("failed to query service %q", svcName), err)
	}

	pidStr := strings.TrimSpace(string(out))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid == 0 {
		return 0, errors.NewDiscoveryError(fmt.Sprintf("service %q is not running", svcName), err)
	}
	return pid, nil
}
