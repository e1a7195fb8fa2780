//go:build linux
// +build linux

package resourcelimits

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxMonitor_GetProcessUsage_Self(t *testing.T) {
	monitor := newPlatformResourceMonitor(&ResourceLimitsMockLogger{})

	usage, err := monitor.GetProcessUsage(os.Getpid())
	require.NoError(t, err)
	require.NotNil(t, usage)

	assert.Greater(t, usage.MemoryRSS, int64(0))
	assert.Greater(t, usage.MemoryVirtual, int64(0))
	assert.GreaterOrEqual(t, usage.CPUTime, 0.0)
	assert.Greater(t, usage.OpenFileDescriptors, 0)
	assert.False(t, usage.Timestamp.IsZero())
}

func TestLinuxMonitor_GetProcessUsage_NonexistentPID(t *testing.T) {
	monitor := newPlatformResourceMonitor(&ResourceLimitsMockLogger{})

	// PID 0 has no /proc entry
	_, err := monitor.GetProcessUsage(0)
	assert.Error(t, err)
}

func TestLinuxMonitor_CPUPercentNeedsTwoSamples(t *testing.T) {
	monitor := newPlatformResourceMonitor(&ResourceLimitsMockLogger{})

	first, err := monitor.GetProcessUsage(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.CPUPercent)

	second, err := monitor.GetProcessUsage(os.Getpid())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
}

func TestReadTotalSystemMemory(t *testing.T) {
	total := readTotalSystemMemory()
	assert.Greater(t, total, int64(0))
}
