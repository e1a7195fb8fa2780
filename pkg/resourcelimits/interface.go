package resourcelimits

import (
	"context"
	"time"
)

// ResourceLimitManager coordinates monitoring, violation checking and limit
// enforcement for a single process.
type ResourceLimitManager interface {
	// Start begins resource limit management
	Start(ctx context.Context) error

	// Stop stops resource limit management
	Stop()

	// GetLimits returns current resource limits
	GetLimits() *ResourceLimits

	// GetCurrentUsage returns current resource usage
	GetCurrentUsage() (*ResourceUsage, error)

	// GetViolations returns current resource violations
	GetViolations() []*ResourceViolation

	// GetViolationHandlingMode returns the current violation handling mode
	GetViolationHandlingMode() ViolationHandlingMode

	// SetViolationCallback sets callback for limit violations
	SetViolationCallback(callback ResourceViolationCallback)
}

// ResourceMonitor provides real-time resource usage monitoring
type ResourceMonitor interface {
	// GetCurrentUsage returns current resource usage
	GetCurrentUsage() (*ResourceUsage, error)

	// Start begins resource monitoring
	Start(ctx context.Context) error

	// Stop stops resource monitoring
	Stop()

	// SetUsageCallback sets callback for resource usage updates
	SetUsageCallback(callback ResourceUsageCallback)

	// GetUsageHistory returns usage samples collected after the given time
	GetUsageHistory(since time.Time) []*ResourceUsage
}

// ResourceViolationChecker compares usage samples against configured limits
type ResourceViolationChecker interface {
	CheckViolations(usage *ResourceUsage, limits *ResourceLimits) []*ResourceViolation
}

// ResourceEnforcer applies resource limits to a process
type ResourceEnforcer interface {
	// ApplyLimits applies resource limits to a process
	ApplyLimits(pid int, limits *ResourceLimits) error

	// SupportsLimitType checks if a limit type is supported on current platform
	SupportsLimitType(limitType ResourceLimitType) bool
}

// ResourceLimitType represents different types of resource limits
type ResourceLimitType string

const (
	ResourceLimitTypeMemory  ResourceLimitType = "memory"
	ResourceLimitTypeCPU     ResourceLimitType = "cpu"
	ResourceLimitTypeIO      ResourceLimitType = "io"
	ResourceLimitTypeNetwork ResourceLimitType = "network"
	ResourceLimitTypeProcess ResourceLimitType = "process"
)

// ResourceUsage represents current resource usage
type ResourceUsage struct {
	Timestamp time.Time `json:"timestamp"`

	// Memory usage
	MemoryRSS     int64   `json:"memory_rss"`     // Resident Set Size
	MemoryVirtual int64   `json:"memory_virtual"` // Virtual memory
	MemoryPercent float64 `json:"memory_percent"` // % of system memory

	// CPU usage
	CPUPercent float64 `json:"cpu_percent"` // % CPU usage
	CPUTime    float64 `json:"cpu_time"`    // Total CPU time in seconds

	// I/O usage
	IOReadBytes  int64 `json:"io_read_bytes"`  // Bytes read
	IOWriteBytes int64 `json:"io_write_bytes"` // Bytes written
	IOReadOps    int64 `json:"io_read_ops"`    // Read operations
	IOWriteOps   int64 `json:"io_write_ops"`   // Write operations

	// Process/File descriptor usage
	OpenFileDescriptors int `json:"open_file_descriptors"`
	ChildProcesses      int `json:"child_processes"`
}

// ResourceViolation represents a resource limit violation
type ResourceViolation struct {
	LimitType    ResourceLimitType `json:"limit_type"`
	CurrentValue interface{}       `json:"current_value"`
	LimitValue   interface{}       `json:"limit_value"`
	Severity     ViolationSeverity `json:"severity"`
	Timestamp    time.Time         `json:"timestamp"`
	Message      string            `json:"message"`
}

// ViolationSeverity indicates how severe a resource violation is
type ViolationSeverity string

const (
	ViolationSeverityWarning  ViolationSeverity = "warning"
	ViolationSeverityCritical ViolationSeverity = "critical"
)

// ResourcePolicy defines what action to take when limits are violated
type ResourcePolicy string

const (
	ResourcePolicyNone             ResourcePolicy = "none"              // No action
	ResourcePolicyLog              ResourcePolicy = "log"               // Log violation only
	ResourcePolicyAlert            ResourcePolicy = "alert"             // Send alert/notification
	ResourcePolicyGracefulShutdown ResourcePolicy = "graceful_shutdown" // SIGTERM then SIGKILL
	ResourcePolicyImmediateKill    ResourcePolicy = "immediate_kill"    // SIGKILL immediately
	ResourcePolicyRestart          ResourcePolicy = "restart"           // Restart the process
)

// ResourceLimits provides resource limits with policies and monitoring
type ResourceLimits struct {
	// Process priority (standalone field)
	Priority int `yaml:"priority,omitempty"`

	// Advanced limits with policies and monitoring
	Memory     *MemoryLimits             `yaml:"memory,omitempty"`
	CPU        *CPULimits                `yaml:"cpu,omitempty"`
	Process    *ProcessLimits            `yaml:"process,omitempty"`
	Monitoring *ResourceMonitoringConfig `yaml:"monitoring,omitempty"`
}

// PolicyFor returns the configured policy for the given limit type
func (l *ResourceLimits) PolicyFor(limitType ResourceLimitType) ResourcePolicy {
	if l == nil {
		return ResourcePolicyNone
	}

	switch limitType {
	case ResourceLimitTypeMemory:
		if l.Memory != nil {
			return l.Memory.Policy
		}
	case ResourceLimitTypeCPU:
		if l.CPU != nil {
			return l.CPU.Policy
		}
	case ResourceLimitTypeProcess:
		if l.Process != nil {
			return l.Process.Policy
		}
	}

	return ResourcePolicyNone
}

// MemoryLimits defines memory-specific limits and policies
type MemoryLimits struct {
	MaxRSS     int64 `yaml:"max_rss,omitempty"`     // Max RSS in bytes
	MaxVirtual int64 `yaml:"max_virtual,omitempty"` // Max virtual memory

	// Policy and monitoring
	WarningThreshold float64        `yaml:"warning_threshold,omitempty"` // Warning threshold (0-100%)
	Policy           ResourcePolicy `yaml:"policy,omitempty"`            // Action to take
}

// CPULimits defines CPU-specific limits and policies
type CPULimits struct {
	MaxPercent float64       `yaml:"max_percent,omitempty"` // Max CPU percentage
	MaxTime    time.Duration `yaml:"max_time,omitempty"`    // Max total CPU time

	// Policy and monitoring
	WarningThreshold float64        `yaml:"warning_threshold,omitempty"` // Warning threshold (0-100%)
	Policy           ResourcePolicy `yaml:"policy,omitempty"`            // Action to take
}

// ProcessLimits defines process/file descriptor limits and policies
type ProcessLimits struct {
	MaxFileDescriptors int `yaml:"max_file_descriptors,omitempty"` // Max open FDs
	MaxChildProcesses  int `yaml:"max_child_processes,omitempty"`  // Max child processes

	// Policy and monitoring
	WarningThreshold float64        `yaml:"warning_threshold,omitempty"` // Warning threshold (0-100%)
	Policy           ResourcePolicy `yaml:"policy,omitempty"`            // Action to take
}

// ResourceMonitoringConfig defines monitoring behavior
type ResourceMonitoringConfig struct {
	Enabled          bool          `yaml:"enabled"`                     // Enable monitoring
	Interval         time.Duration `yaml:"interval,omitempty"`          // Monitoring interval
	HistoryRetention time.Duration `yaml:"history_retention,omitempty"` // How long to keep history

	// Violation handling configuration
	ViolationHandling ViolationHandlingMode `yaml:"violation_handling,omitempty"` // How to handle violations
}

// ViolationHandlingMode defines how resource violations are handled
type ViolationHandlingMode string

const (
	// ViolationHandlingInternal logs violations and enforces only the
	// immediate_kill policy directly. This is the default mode.
	ViolationHandlingInternal ViolationHandlingMode = "internal"

	// ViolationHandlingExternal delegates violation handling to external
	// callbacks, used when process control owns the restart decision.
	ViolationHandlingExternal ViolationHandlingMode = "external"

	// ViolationHandlingDisabled disables violation handling entirely (monitoring only)
	ViolationHandlingDisabled ViolationHandlingMode = "disabled"
)

// Callback types
type ResourceUsageCallback func(usage *ResourceUsage)
type ResourceViolationCallback func(violation *ResourceViolation)
