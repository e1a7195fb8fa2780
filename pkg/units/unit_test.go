package units

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControlMode(t *testing.T) {
	assert.True(t, ControlModeUnmanaged.Valid())
	assert.True(t, ControlModeManaged.Valid())
	assert.True(t, ControlModeIntegrated.Valid())
	assert.False(t, ControlMode("supervised").Valid())
	assert.False(t, ControlMode("").Valid())

	assert.False(t, ControlModeUnmanaged.MasterOwnsProcess())
	assert.True(t, ControlModeManaged.MasterOwnsProcess())
	assert.True(t, ControlModeIntegrated.MasterOwnsProcess())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    UnitState
		to      UnitState
		allowed bool
	}{
		{name: "registered_to_starting", from: UnitStateRegistered, to: UnitStateStarting, allowed: true},
		{name: "registered_to_stopping", from: UnitStateRegistered, to: UnitStateStopping, allowed: true},
		{name: "registered_to_healthy_skips_starting", from: UnitStateRegistered, to: UnitStateHealthy, allowed: false},
		{name: "starting_to_healthy", from: UnitStateStarting, to: UnitStateHealthy, allowed: true},
		{name: "starting_to_unhealthy", from: UnitStateStarting, to: UnitStateUnhealthy, allowed: true},
		{name: "starting_to_failed", from: UnitStateStarting, to: UnitStateFailed, allowed: true},
		{name: "healthy_to_unhealthy", from: UnitStateHealthy, to: UnitStateUnhealthy, allowed: true},
		{name: "healthy_to_restarting_skips_unhealthy", from: UnitStateHealthy, to: UnitStateRestarting, allowed: false},
		{name: "unhealthy_to_healthy", from: UnitStateUnhealthy, to: UnitStateHealthy, allowed: true},
		{name: "unhealthy_to_restarting", from: UnitStateUnhealthy, to: UnitStateRestarting, allowed: true},
		{name: "restarting_to_starting", from: UnitStateRestarting, to: UnitStateStarting, allowed: true},
		{name: "restarting_to_failed", from: UnitStateRestarting, to: UnitStateFailed, allowed: true},
		{name: "stopping_to_stopped", from: UnitStateStopping, to: UnitStateStopped, allowed: true},
		{name: "stopping_to_starting", from: UnitStateStopping, to: UnitStateStarting, allowed: false},
		{name: "stopped_is_terminal", from: UnitStateStopped, to: UnitStateStarting, allowed: false},
		{name: "failed_is_terminal", from: UnitStateFailed, to: UnitStateStarting, allowed: false},
		{name: "unknown_state", from: UnitState("limbo"), to: UnitStateStarting, allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEveryNonTerminalStateCanReachStopping(t *testing.T) {
	for _, state := range []UnitState{UnitStateRegistered, UnitStateStarting, UnitStateHealthy, UnitStateUnhealthy, UnitStateRestarting} {
		assert.True(t, CanTransition(state, UnitStateStopping), "state %s", state)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, UnitStateStopped.Terminal())
	assert.True(t, UnitStateFailed.Terminal())
	assert.False(t, UnitStateHealthy.Terminal())
	assert.False(t, UnitState("limbo").Terminal())

	assert.Empty(t, NextStates(UnitStateStopped))
	assert.Empty(t, NextStates(UnitStateFailed))
	assert.NotEmpty(t, NextStates(UnitStateHealthy))
}

func TestRestartPolicy_WithDefaults(t *testing.T) {
	t.Run("zero_value_gets_defaults", func(t *testing.T) {
		policy := RestartPolicy{}.WithDefaults()
		assert.Equal(t, DefaultMaxRetries, policy.MaxRetries)
		assert.Equal(t, DefaultBackoffBase, policy.BackoffBase)
		assert.Equal(t, DefaultBackoffCap, policy.BackoffCap)
		assert.Equal(t, DefaultBackoffRate, policy.BackoffRate)
		assert.Equal(t, DefaultSustainedHealthyReset, policy.SustainedHealthyReset)
	})

	t.Run("explicit_values_kept", func(t *testing.T) {
		policy := RestartPolicy{
			MaxRetries:            5,
			BackoffBase:           2 * time.Second,
			BackoffCap:            30 * time.Second,
			BackoffRate:           3.0,
			SustainedHealthyReset: 5 * time.Minute,
		}.WithDefaults()
		assert.Equal(t, 5, policy.MaxRetries)
		assert.Equal(t, 2*time.Second, policy.BackoffBase)
		assert.Equal(t, 30*time.Second, policy.BackoffCap)
		assert.Equal(t, 3.0, policy.BackoffRate)
		assert.Equal(t, 5*time.Minute, policy.SustainedHealthyReset)
	})

	t.Run("negative_max_retries_means_disabled", func(t *testing.T) {
		policy := RestartPolicy{MaxRetries: -1}.WithDefaults()
		assert.Equal(t, -1, policy.MaxRetries)
	})
}

func TestRestartPolicy_BackoffDelay(t *testing.T) {
	policy := RestartPolicy{
		BackoffBase: time.Second,
		BackoffCap:  60 * time.Second,
		BackoffRate: 2.0,
	}

	t.Run("first_attempt_uses_base", func(t *testing.T) {
		assert.Equal(t, time.Second, policy.BackoffDelay(1))
	})

	t.Run("grows_geometrically", func(t *testing.T) {
		assert.Equal(t, 2*time.Second, policy.BackoffDelay(2))
		assert.Equal(t, 4*time.Second, policy.BackoffDelay(3))
		assert.Equal(t, 8*time.Second, policy.BackoffDelay(4))
	})

	t.Run("saturates_at_cap", func(t *testing.T) {
		assert.Equal(t, 60*time.Second, policy.BackoffDelay(8))
		assert.Equal(t, 60*time.Second, policy.BackoffDelay(20))
	})

	t.Run("rate_one_stays_constant", func(t *testing.T) {
		flat := RestartPolicy{BackoffBase: 5 * time.Second, BackoffCap: time.Minute, BackoffRate: 1.0}
		assert.Equal(t, 5*time.Second, flat.BackoffDelay(1))
		assert.Equal(t, 5*time.Second, flat.BackoffDelay(7))
	})

	t.Run("base_above_cap_is_capped", func(t *testing.T) {
		odd := RestartPolicy{BackoffBase: 2 * time.Minute, BackoffCap: time.Minute, BackoffRate: 2.0}
		assert.Equal(t, time.Minute, odd.BackoffDelay(1))
	})
}
