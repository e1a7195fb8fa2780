package resourcelimits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceLimitManager_ViolationHandlingModes(t *testing.T) {
	logger := &ResourceLimitsMockLogger{}

	t.Run("external_mode_invokes_callback", func(t *testing.T) {
		limits := &ResourceLimits{
			Memory: &MemoryLimits{
				MaxRSS: 100 * 1024 * 1024,
				Policy: ResourcePolicyRestart,
			},
			Monitoring: &ResourceMonitoringConfig{
				Enabled:           true,
				Interval:          time.Second,
				ViolationHandling: ViolationHandlingExternal,
			},
		}

		manager := NewResourceLimitManager(12345, limits, logger)
		assert.Equal(t, ViolationHandlingExternal, manager.GetViolationHandlingMode())

		var mu sync.Mutex
		var received *ResourceViolation

		manager.SetViolationCallback(func(violation *ResourceViolation) {
			mu.Lock()
			defer mu.Unlock()
			received = violation
		})

		testViolation := &ResourceViolation{
			LimitType:    ResourceLimitTypeMemory,
			CurrentValue: int64(200 * 1024 * 1024),
			LimitValue:   int64(100 * 1024 * 1024),
			Severity:     ViolationSeverityCritical,
			Timestamp:    time.Now(),
			Message:      "Test violation",
		}

		manager.(*resourceLimitManager).dispatchViolation(testViolation)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return received != nil
		}, time.Second, 10*time.Millisecond)

		mu.Lock()
		assert.Equal(t, "Test violation", received.Message)
		mu.Unlock()
	})

	t.Run("internal_mode_is_default", func(t *testing.T) {
		limits := &ResourceLimits{
			Memory: &MemoryLimits{
				MaxRSS: 100 * 1024 * 1024,
				Policy: ResourcePolicyLog,
			},
		}

		manager := NewResourceLimitManager(12345, limits, logger)

		assert.Equal(t, ViolationHandlingInternal, manager.GetViolationHandlingMode())
	})

	t.Run("disabled_mode_skips_callback", func(t *testing.T) {
		limits := &ResourceLimits{
			Memory: &MemoryLimits{
				MaxRSS: 100 * 1024 * 1024,
				Policy: ResourcePolicyRestart,
			},
			Monitoring: &ResourceMonitoringConfig{
				Enabled:           true,
				ViolationHandling: ViolationHandlingDisabled,
			},
		}

		manager := NewResourceLimitManager(12345, limits, logger)
		assert.Equal(t, ViolationHandlingDisabled, manager.GetViolationHandlingMode())

		var mu sync.Mutex
		invoked := false
		manager.SetViolationCallback(func(violation *ResourceViolation) {
			mu.Lock()
			defer mu.Unlock()
			invoked = true
		})

		manager.(*resourceLimitManager).dispatchViolation(&ResourceViolation{
			LimitType: ResourceLimitTypeMemory,
			Severity:  ViolationSeverityCritical,
			Message:   "Test disabled violation",
		})

		time.Sleep(100 * time.Millisecond)

		mu.Lock()
		assert.False(t, invoked)
		mu.Unlock()
	})
}

func TestResourceLimitManager_ExternalDispatchByLimitType(t *testing.T) {
	logger := &ResourceLimitsMockLogger{}

	limits := &ResourceLimits{
		Memory: &MemoryLimits{
			MaxRSS: 256 * 1024 * 1024,
			Policy: ResourcePolicyRestart,
		},
		CPU: &CPULimits{
			MaxPercent: 75.0,
			Policy:     ResourcePolicyGracefulShutdown,
		},
		Process: &ProcessLimits{
			MaxFileDescriptors: 1024,
			Policy:             ResourcePolicyAlert,
		},
		Monitoring: &ResourceMonitoringConfig{
			ViolationHandling: ViolationHandlingExternal,
		},
	}

	manager := NewResourceLimitManager(12345, limits, logger)

	var mu sync.Mutex
	var policies []ResourcePolicy

	manager.SetViolationCallback(func(violation *ResourceViolation) {
		mu.Lock()
		defer mu.Unlock()
		policies = append(policies, limits.PolicyFor(violation.LimitType))
	})

	testViolations := []*ResourceViolation{
		{LimitType: ResourceLimitTypeMemory, Severity: ViolationSeverityCritical, Message: "Memory limit exceeded"},
		{LimitType: ResourceLimitTypeCPU, Severity: ViolationSeverityCritical, Message: "CPU limit exceeded"},
		{LimitType: ResourceLimitTypeProcess, Severity: ViolationSeverityWarning, Message: "File descriptor limit exceeded"},
	}

	for _, violation := range testViolations {
		manager.(*resourceLimitManager).dispatchViolation(violation)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(policies) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, policies, ResourcePolicyRestart)
	assert.Contains(t, policies, ResourcePolicyGracefulShutdown)
	assert.Contains(t, policies, ResourcePolicyAlert)
	mu.Unlock()
}

func TestResourceLimitManager_NoLimits(t *testing.T) {
	logger := &ResourceLimitsMockLogger{}

	manager := NewResourceLimitManager(12345, nil, logger)

	assert.Nil(t, manager.GetLimits())
	assert.Empty(t, manager.GetViolations())

	// Start is a no-op without limits, Stop must be safe afterwards
	err := manager.Start(context.Background())
	assert.NoError(t, err)
	manager.Stop()
}
