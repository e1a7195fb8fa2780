//go:build darwin
// +build darwin

package resourcelimits

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// darwinResourceMonitor shells out to ps and lsof, which stay reliable
// across macOS versions without special entitlements.
type darwinResourceMonitor struct {
	logger      logging.Logger
	totalMemory int64
}

func newPlatformResourceMonitor(logger logging.Logger) PlatformResourceMonitor {
	return &darwinResourceMonitor{
		logger:      logger,
		totalMemory: getTotalSystemMemory(),
	}
}

func (d *darwinResourceMonitor) GetProcessUsage(pid int) (*ResourceUsage, error) {
	usage := &ResourceUsage{
		Timestamp: time.Now(),
	}

	if err := d.getMemoryAndCPU(pid, usage); err != nil {
		return nil, err
	}

	// Best-effort metrics below
	if err := d.getFileDescriptorCount(pid, usage); err != nil {
		d.logger.Debugf("Failed to get file descriptor count, pid: %d, error: %v", pid, err)
	}
	usage.ChildProcesses = countChildProcesses(pid)

	if d.totalMemory > 0 {
		usage.MemoryPercent = float64(usage.MemoryRSS) / float64(d.totalMemory) * 100.0
	}

	return usage, nil
}

// getMemoryAndCPU reads RSS, VSZ, CPU percentage and CPU time in one ps call
func (d *darwinResourceMonitor) getMemoryAndCPU(pid int, usage *ResourceUsage) error {
	cmd := exec.Command("ps", "-o", "rss=,vsz=,pcpu=,time=", "-p", strconv.Itoa(pid))
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("ps command failed for pid %d: %w", pid, err)
	}

	fields := strings.Fields(strings.TrimSpace(string(output)))
	if len(fields) < 4 {
		return fmt.Errorf("insufficient ps output fields for pid %d", pid)
	}

	// RSS and VSZ are reported in KB
	if rssKB, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
		usage.MemoryRSS = rssKB * 1024
	}
	if vszKB, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
		usage.MemoryVirtual = vszKB * 1024
	}
	if cpuPercent, err := strconv.ParseFloat(fields[2], 64); err == nil {
		usage.CPUPercent = cpuPercent
	}
	usage.CPUTime = parseCPUTime(fields[3])

	return nil
}

// parseCPUTime parses cumulative CPU time formats like "0:01.23" or "1:23:45"
func parseCPUTime(timeStr string) float64 {
	parts := strings.Split(timeStr, ":")

	var seconds float64
	multiplier := 1.0

	for i := len(parts) - 1; i >= 0; i-- {
		if val, err := strconv.ParseFloat(parts[i], 64); err == nil {
			seconds += val * multiplier
			multiplier *= 60
		}
	}

	return seconds
}

// getFileDescriptorCount counts open descriptors using lsof
func (d *darwinResourceMonitor) getFileDescriptorCount(pid int, usage *ResourceUsage) error {
	cmd := exec.Command("lsof", "-p", strconv.Itoa(pid))
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("lsof command failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 1 {
		usage.OpenFileDescriptors = len(lines) - 1 // Subtract header line
	}

	return nil
}

func countChildProcesses(pid int) int {
	cmd := exec.Command("pgrep", "-P", strconv.Itoa(pid))
	output, err := cmd.Output()
	if err != nil {
		return 0
	}

	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return 0
	}

	return len(strings.Split(trimmed, "\n"))
}

// getTotalSystemMemory reads total memory via sysctl for percentage calculations
func getTotalSystemMemory() int64 {
	cmd := exec.Command("sysctl", "-n", "hw.memsize")
	output, err := cmd.Output()
	if err != nil {
		return 0
	}

	totalBytes, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0
	}

	return totalBytes
}
