package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogCollectionConfig(t *testing.T) {
	cfg := DefaultLogCollectionConfig()

	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.GlobalAggregation.Enabled)
	assert.Equal(t, DefaultBufferLines, cfg.DefaultUnit.BufferLines)

	// Default targets use relative paths so the path manager can place
	// them per platform.
	require.NotEmpty(t, cfg.GlobalAggregation.Targets)
	assert.Equal(t, "aggregated.log", cfg.GlobalAggregation.Targets[0].Path)

	require.NotEmpty(t, cfg.DefaultUnit.Outputs)
	assert.Equal(t, "{unit_id}.log", cfg.DefaultUnit.Outputs[0].Path)
}

func TestOutputTargetValidation(t *testing.T) {
	tests := []struct {
		name        string
		target      OutputTargetConfig
		expectError bool
	}{
		{
			name:        "valid_file_target",
			target:      OutputTargetConfig{Type: OutputTypeFile, Path: "unit.log", Format: OutputFormatPlain},
			expectError: false,
		},
		{
			name:        "valid_stdout_target",
			target:      OutputTargetConfig{Type: OutputTypeStdout},
			expectError: false,
		},
		{
			name:        "file_without_path",
			target:      OutputTargetConfig{Type: OutputTypeFile},
			expectError: true,
		},
		{
			name:        "unknown_type",
			target:      OutputTargetConfig{Type: "syslog", Path: "x"},
			expectError: true,
		},
		{
			name:        "unknown_format",
			target:      OutputTargetConfig{Type: OutputTypeStdout, Format: "xml"},
			expectError: true,
		},
		{
			name:        "negative_rotation",
			target:      OutputTargetConfig{Type: OutputTypeFile, Path: "x", Rotation: RotationConfig{MaxSizeMB: -1}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRotationConfig_WithDefaults(t *testing.T) {
	filled := RotationConfig{}.WithDefaults()
	assert.Equal(t, DefaultMaxSizeMB, filled.MaxSizeMB)
	assert.Equal(t, DefaultMaxBackups, filled.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, filled.MaxAgeDays)
	assert.False(t, filled.Compress)

	explicit := RotationConfig{MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 1, Compress: true}.WithDefaults()
	assert.Equal(t, 10, explicit.MaxSizeMB)
	assert.Equal(t, 2, explicit.MaxBackups)
	assert.Equal(t, 1, explicit.MaxAgeDays)
	assert.True(t, explicit.Compress)
}

func TestUnitLogConfigValidation(t *testing.T) {
	cfg := DefaultUnitLogConfig()
	require.NoError(t, cfg.Validate())

	cfg.BufferLines = -1
	assert.Error(t, cfg.Validate())

	// Disabled sections skip validation entirely.
	disabled := UnitLogConfig{Enabled: false, BufferLines: -1}
	assert.NoError(t, disabled.Validate())
}

func TestLogCollectionConfigValidation(t *testing.T) {
	cfg := DefaultLogCollectionConfig()
	cfg.GlobalAggregation.Targets = append(cfg.GlobalAggregation.Targets,
		OutputTargetConfig{Type: "invalid"})
	assert.Error(t, cfg.Validate())

	cfg = DefaultLogCollectionConfig()
	cfg.System.MaxUnits = -5
	assert.Error(t, cfg.Validate())

	cfg = DefaultLogCollectionConfig()
	cfg.Enabled = false
	cfg.System.MaxUnits = -5
	assert.NoError(t, cfg.Validate())
}
