package config

import (
	"fmt"
)

// Output target types understood by the collection service.
const (
	OutputTypeFile   = "file"
	OutputTypeStdout = "stdout"
)

// Output line formats.
const (
	OutputFormatPlain    = "plain"
	OutputFormatEnhanced = "enhanced_plain"
	OutputFormatJSON     = "json"
)

// Rotation defaults applied to file sinks when a target leaves them unset.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14
)

// DefaultBufferLines bounds the per-unit in-memory entry buffer.
const DefaultBufferLines = 2000

// LogCollectionConfig is the log collection section of the master
// configuration.
type LogCollectionConfig struct {
	Enabled           bool                    `yaml:"enabled"`
	GlobalAggregation GlobalAggregationConfig `yaml:"global_aggregation,omitempty"`
	DefaultUnit       UnitLogConfig           `yaml:"default_unit,omitempty"`
	System            SystemConfig            `yaml:"system,omitempty"`
}

// GlobalAggregationConfig routes every collected line, regardless of
// unit, into a shared set of targets.
type GlobalAggregationConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Targets []OutputTargetConfig `yaml:"targets,omitempty"`
}

// UnitLogConfig configures collection for a single unit. Units without
// an explicit section inherit DefaultUnit.
type UnitLogConfig struct {
	Enabled       bool                 `yaml:"enabled"`
	CaptureStdout bool                 `yaml:"capture_stdout"`
	CaptureStderr bool                 `yaml:"capture_stderr"`
	BufferLines   int                  `yaml:"buffer_lines,omitempty"`
	Outputs       []OutputTargetConfig `yaml:"outputs,omitempty"`
}

// OutputTargetConfig describes one sink. Relative file paths resolve
// under the application log directory; a {unit_id} placeholder in the
// path is replaced per unit.
type OutputTargetConfig struct {
	Type     string         `yaml:"type"`
	Path     string         `yaml:"path,omitempty"`
	Format   string         `yaml:"format,omitempty"`
	Rotation RotationConfig `yaml:"rotation,omitempty"`
}

// RotationConfig maps directly onto lumberjack's rotation knobs.
type RotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb,omitempty"`
	MaxBackups int  `yaml:"max_backups,omitempty"`
	MaxAgeDays int  `yaml:"max_age_days,omitempty"`
	Compress   bool `yaml:"compress,omitempty"`
}

// SystemConfig holds service-wide limits.
type SystemConfig struct {
	MaxUnits int `yaml:"max_units,omitempty"`
}

// WithDefaults fills unset rotation knobs.
func (r RotationConfig) WithDefaults() RotationConfig {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = DefaultMaxSizeMB
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = DefaultMaxBackups
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = DefaultMaxAgeDays
	}
	return r
}

// DefaultLogCollectionConfig returns the configuration used when the
// master config file has no log_collection section.
func DefaultLogCollectionConfig() LogCollectionConfig {
	return LogCollectionConfig{
		Enabled: true,
		GlobalAggregation: GlobalAggregationConfig{
			Enabled: true,
			Targets: []OutputTargetConfig{
				{Type: OutputTypeFile, Path: "aggregated.log", Format: OutputFormatEnhanced},
			},
		},
		DefaultUnit: DefaultUnitLogConfig(),
		System: SystemConfig{
			MaxUnits: 100,
		},
	}
}

// DefaultUnitLogConfig returns the per-unit configuration applied to
// units without an explicit log section.
func DefaultUnitLogConfig() UnitLogConfig {
	return UnitLogConfig{
		Enabled:       true,
		CaptureStdout: true,
		CaptureStderr: true,
		BufferLines:   DefaultBufferLines,
		Outputs: []OutputTargetConfig{
			{Type: OutputTypeFile, Path: "{unit_id}.log", Format: OutputFormatPlain},
		},
	}
}

func (c *LogCollectionConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	for i := range c.GlobalAggregation.Targets {
		if err := c.GlobalAggregation.Targets[i].Validate(); err != nil {
			return fmt.Errorf("global aggregation target %d: %w", i, err)
		}
	}
	if err := c.DefaultUnit.Validate(); err != nil {
		return fmt.Errorf("default unit config: %w", err)
	}
	if c.System.MaxUnits < 0 {
		return fmt.Errorf("system max_units cannot be negative")
	}
	return nil
}

func (c *UnitLogConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BufferLines < 0 {
		return fmt.Errorf("buffer_lines cannot be negative")
	}
	for i := range c.Outputs {
		if err := c.Outputs[i].Validate(); err != nil {
			return fmt.Errorf("output target %d: %w", i, err)
		}
	}
	return nil
}

func (t *OutputTargetConfig) Validate() error {
	switch t.Type {
	case OutputTypeFile:
		if t.Path == "" {
			return fmt.Errorf("file output requires a path")
		}
	case OutputTypeStdout:
	default:
		return fmt.Errorf("unknown output type: %q", t.Type)
	}

	switch t.Format {
	case "", OutputFormatPlain, OutputFormatEnhanced, OutputFormatJSON:
	default:
		return fmt.Errorf("unknown output format: %q", t.Format)
	}

	if t.Rotation.MaxSizeMB < 0 || t.Rotation.MaxBackups < 0 || t.Rotation.MaxAgeDays < 0 {
		return fmt.Errorf("rotation values cannot be negative")
	}
	return nil
}
