//go:build windows
// +build windows

package resourcelimits

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

const (
	PROCESS_VM_READ = 0x0010
)

// windowsResourceMonitor reads per-process usage via Win32 APIs
type windowsResourceMonitor struct {
	logger logging.Logger

	kernel32              *syscall.LazyDLL
	psapi                 *syscall.LazyDLL
	getProcessMemoryInfo  *syscall.LazyProc
	getProcessTimes       *syscall.LazyProc
	getProcessHandleCount *syscall.LazyProc
	getProcessIoCounters  *syscall.LazyProc

	mutex       sync.Mutex
	lastSamples map[int]cpuSample
}

type cpuSample struct {
	cpuTime   float64
	timestamp time.Time
}

type processMemoryCounters struct {
	Size                       uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

type fileTime struct {
	LowDateTime  uint32
	HighDateTime uint32
}

func newPlatformResourceMonitor(logger logging.Logger) PlatformResourceMonitor {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	psapi := syscall.NewLazyDLL("psapi.dll")

	return &windowsResourceMonitor{
		logger:                logger,
		kernel32:              kernel32,
		psapi:                 psapi,
		getProcessMemoryInfo:  psapi.NewProc("GetProcessMemoryInfo"),
		getProcessTimes:       kernel32.NewProc("GetProcessTimes"),
		getProcessHandleCount: kernel32.NewProc("GetProcessHandleCount"),
		getProcessIoCounters:  kernel32.NewProc("GetProcessIoCounters"),
		lastSamples:           make(map[int]cpuSample),
	}
}

func (w *windowsResourceMonitor) GetProcessUsage(pid int) (*ResourceUsage, error) {
	handle, err := syscall.OpenProcess(
		syscall.PROCESS_QUERY_INFORMATION|PROCESS_VM_READ,
		false,
		uint32(pid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	defer syscall.CloseHandle(handle)

	usage := &ResourceUsage{
		Timestamp: time.Now(),
	}

	if err := w.getMemoryUsage(handle, usage); err != nil {
		w.logger.Debugf("Failed to get memory usage, pid: %d, error: %v", pid, err)
	}

	if err := w.getCPUUsage(handle, usage); err != nil {
		w.logger.Debugf("Failed to get CPU usage, pid: %d, error: %v", pid, err)
	}

	if err := w.getHandleCount(handle, usage); err != nil {
		w.logger.Debugf("Failed to get handle count, pid: %d, error: %v", pid, err)
	}

	if err := w.getIOUsage(handle, usage); err != nil {
		w.logger.Debugf("Failed to get I/O usage, pid: %d, error: %v", pid, err)
	}

	w.updateCPUPercent(pid, usage)

	return usage, nil
}

func (w *windowsResourceMonitor) getMemoryUsage(handle syscall.Handle, usage *ResourceUsage) error {
	var pmc processMemoryCounters
	pmc.Size = uint32(unsafe.Sizeof(pmc))

	ret, _, err := w.getProcessMemoryInfo.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&pmc)),
		uintptr(pmc.Size),
	)

	if ret == 0 {
		return fmt.Errorf("GetProcessMemoryInfo failed: %v", err)
	}

	usage.MemoryRSS = int64(pmc.WorkingSetSize)
	usage.MemoryVirtual = int64(pmc.PagefileUsage)

	return nil
}

func (w *windowsResourceMonitor) getCPUUsage(handle syscall.Handle, usage *ResourceUsage) error {
	var creationTime, exitTime, kernelTime, userTime fileTime

	ret, _, err := w.getProcessTimes.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&creationTime)),
		uintptr(unsafe.Pointer(&exitTime)),
		uintptr(unsafe.Pointer(&kernelTime)),
		uintptr(unsafe.Pointer(&userTime)),
	)

	if ret == 0 {
		return fmt.Errorf("GetProcessTimes failed: %v", err)
	}

	usage.CPUTime = fileTimeToSeconds(kernelTime) + fileTimeToSeconds(userTime)

	return nil
}

func (w *windowsResourceMonitor) getHandleCount(handle syscall.Handle, usage *ResourceUsage) error {
	var handleCount uint32

	ret, _, err := w.getProcessHandleCount.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&handleCount)),
	)

	if ret == 0 {
		return fmt.Errorf("GetProcessHandleCount failed: %v", err)
	}

	usage.OpenFileDescriptors = int(handleCount)
	return nil
}

func (w *windowsResourceMonitor) getIOUsage(handle syscall.Handle, usage *ResourceUsage) error {
	var counters ioCounters

	ret, _, err := w.getProcessIoCounters.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&counters)),
	)

	if ret == 0 {
		return fmt.Errorf("GetProcessIoCounters failed: %v", err)
	}

	usage.IOReadBytes = int64(counters.ReadTransferCount)
	usage.IOWriteBytes = int64(counters.WriteTransferCount)
	usage.IOReadOps = int64(counters.ReadOperationCount)
	usage.IOWriteOps = int64(counters.WriteOperationCount)

	return nil
}

// updateCPUPercent derives CPU percentage from the delta against the previous sample
func (w *windowsResourceMonitor) updateCPUPercent(pid int, usage *ResourceUsage) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	last, ok := w.lastSamples[pid]
	if ok {
		elapsed := usage.Timestamp.Sub(last.timestamp).Seconds()
		if elapsed > 0 {
			percent := (usage.CPUTime - last.cpuTime) / elapsed * 100.0
			if percent < 0 {
				percent = 0
			}
			if percent > 100 {
				percent = 100
			}
			usage.CPUPercent = percent
		}
	}

	w.lastSamples[pid] = cpuSample{
		cpuTime:   usage.CPUTime,
		timestamp: usage.Timestamp,
	}
}

// fileTimeToSeconds converts a Windows FILETIME (100ns intervals) to seconds
func fileTimeToSeconds(ft fileTime) float64 {
	total := (int64(ft.HighDateTime) << 32) | int64(ft.LowDateTime)
	return float64(total) / 10000000.0
}
