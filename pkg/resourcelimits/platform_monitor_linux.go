//go:build linux
// +build linux

package resourcelimits

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Kernel counters in /proc/<pid>/stat are reported in USER_HZ ticks
const clockTicksPerSecond = 100

// linuxResourceMonitor reads per-process usage from the /proc filesystem
type linuxResourceMonitor struct {
	logger logging.Logger

	mutex       sync.Mutex
	lastSamples map[int]cpuSample
	totalMemory int64
}

type cpuSample struct {
	cpuTime   float64
	timestamp time.Time
}

func newPlatformResourceMonitor(logger logging.Logger) PlatformResourceMonitor {
	return &linuxResourceMonitor{
		logger:      logger,
		lastSamples: make(map[int]cpuSample),
		totalMemory: readTotalSystemMemory(),
	}
}

func (l *linuxResourceMonitor) GetProcessUsage(pid int) (*ResourceUsage, error) {
	usage := &ResourceUsage{
		Timestamp: time.Now(),
	}

	if err := l.readStat(pid, usage); err != nil {
		return nil, err
	}

	// Best-effort metrics below, failures are expected for foreign processes
	if err := l.readIO(pid, usage); err != nil {
		l.logger.Debugf("Failed to read I/O counters, pid: %d, error: %v", pid, err)
	}

	usage.OpenFileDescriptors = countFileDescriptors(pid)
	usage.ChildProcesses = countChildProcesses(pid)

	if l.totalMemory > 0 {
		usage.MemoryPercent = float64(usage.MemoryRSS) / float64(l.totalMemory) * 100.0
	}

	l.updateCPUPercent(pid, usage)

	return usage, nil
}

// readStat parses /proc/<pid>/stat for CPU time and memory counters
func (l *linuxResourceMonitor) readStat(pid int, usage *ResourceUsage) error {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return fmt.Errorf("failed to read stat for pid %d: %w", pid, err)
	}

	// The command field is wrapped in parentheses and may contain spaces,
	// so split only after the closing paren.
	line := string(data)
	closeParen := strings.LastIndexByte(line, ')')
	if closeParen < 0 || closeParen+2 > len(line) {
		return fmt.Errorf("malformed stat line for pid %d", pid)
	}

	fields := strings.Fields(line[closeParen+2:])
	// Fields counted from "state": utime=11, stime=12, vsize=20, rss=21
	if len(fields) < 22 {
		return fmt.Errorf("truncated stat line for pid %d: %d fields", pid, len(fields))
	}

	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid utime for pid %d: %w", pid, err)
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid stime for pid %d: %w", pid, err)
	}
	usage.CPUTime = float64(utime+stime) / clockTicksPerSecond

	if vsize, err := strconv.ParseInt(fields[20], 10, 64); err == nil {
		usage.MemoryVirtual = vsize
	}
	if rssPages, err := strconv.ParseInt(fields[21], 10, 64); err == nil {
		usage.MemoryRSS = rssPages * int64(os.Getpagesize())
	}

	return nil
}

// readIO parses /proc/<pid>/io, which needs ptrace-level access for foreign processes
func (l *linuxResourceMonitor) readIO(pid int, usage *ResourceUsage) error {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/io", pid))
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}

		switch name {
		case "read_bytes":
			usage.IOReadBytes = n
		case "write_bytes":
			usage.IOWriteBytes = n
		case "syscr":
			usage.IOReadOps = n
		case "syscw":
			usage.IOWriteOps = n
		}
	}

	return nil
}

// updateCPUPercent derives CPU percentage from the delta against the previous sample
func (l *linuxResourceMonitor) updateCPUPercent(pid int, usage *ResourceUsage) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	last, ok := l.lastSamples[pid]
	if ok {
		elapsed := usage.Timestamp.Sub(last.timestamp).Seconds()
		if elapsed > 0 {
			percent := (usage.CPUTime - last.cpuTime) / elapsed * 100.0
			if percent < 0 {
				percent = 0
			}
			usage.CPUPercent = percent
		}
	}

	l.lastSamples[pid] = cpuSample{
		cpuTime:   usage.CPUTime,
		timestamp: usage.Timestamp,
	}
}

func countFileDescriptors(pid int) int {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/fd", pid))
	if err != nil {
		return 0
	}
	return len(entries)
}

func countChildProcesses(pid int) int {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/task/%d/children", pid, pid))
	if err != nil {
		return 0
	}
	return len(strings.Fields(string(data)))
}

// readTotalSystemMemory parses MemTotal from /proc/meminfo
func readTotalSystemMemory() int64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}

	return 0
}
