package master

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/monitoring"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Simple test logger that implements logging.Logger interface
type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

// getTestExecutable returns a platform-specific executable path that exists
func getTestExecutable() (string, []string, string) {
	if runtime.GOOS == "windows" {
		return "C:\\Windows\\System32\\cmd.exe", []string{"/c", "echo", "test"}, "C:\\Windows\\Temp"
	} else {
		return "/bin/echo", []string{"test"}, "/tmp"
	}
}

// escapeForYAML properly escapes a path for YAML
func escapeForYAML(path string) string {
	if runtime.GOOS == "windows" {
		// Replace backslashes with forward slashes for YAML compatibility
		// Or escape backslashes properly
		result := ""
		for _, char := range path {
			if char == '\\' {
				result += "\\\\"
			} else {
				result += string(char)
			}
		}
		return result
	}
	return path
}

// formatArgsForYAML formats args slice for YAML
func formatArgsForYAML(args []string) string {
	result := "["
	for i, arg := range args {
		if i > 0 {
			result += ", "
		}
		result += `"` + arg + `"`
	}
	result += "]"
	return result
}

func boolPtr(b bool) *bool {
	return &b
}

func TestLoadConfigFromFile(t *testing.T) {
	executablePath, args, workingDir := getTestExecutable()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(*testing.T, *MasterConfig)
	}{
		{
			name: "valid comprehensive config",
			configYAML: `
master:
  port: 50055
  log_level: "info"

units:
  - id: "test-managed"
    control_mode: "managed"
    enabled: true
    metadata:
      description: "A test managed service"
    unit:
      managed:
        execution:
          executable_path: "` + escapeForYAML(executablePath) + `"
          args: ` + formatArgsForYAML(args) + `
          environment: ["LOG_LEVEL=debug"]
          working_directory: "` + escapeForYAML(workingDir) + `"
          wait_delay: "10s"
        health_check:
          enabled: true
          interval: "30s"
          timeout: "5s"
        restart_policy:
          max_retries: 5
          backoff_base: "2s"
          backoff_rate: 1.5

  - id: "test-unmanaged"
    control_mode: "unmanaged"
    unit:
      unmanaged:
        discovery:
          method: "pid-file"
          pid_file: "/var/run/test.pid"

  - id: "test-integrated"
    control_mode: "integrated"
    depends_on: ["test-managed"]
    unit:
      integrated:
        execution:
          executable_path: "` + escapeForYAML(executablePath) + `"
          args: ` + formatArgsForYAML(args) + `
        port: 50601
        health_check:
          enabled: true
          interval: "30s"
          method: "health"
`,
			expectError: false,
			validate: func(t *testing.T, config *MasterConfig) {
				assert.Equal(t, 50055, config.Master.Port)
				assert.Equal(t, "info", config.Master.LogLevel)
				assert.Len(t, config.Units, 3)

				// Check managed unit
				managed := config.Units[0]
				assert.Equal(t, "test-managed", managed.ID)
				assert.Equal(t, units.ControlModeManaged, managed.ControlMode)
				assert.True(t, *managed.Enabled)
				require.NotNil(t, managed.Unit.Managed)
				assert.Equal(t, executablePath, managed.Unit.Managed.Execution.ExecutablePath)
				assert.Equal(t, args, managed.Unit.Managed.Execution.Args)
				assert.Equal(t, 5, managed.Unit.Managed.RestartPolicy.MaxRetries)
				assert.Equal(t, 2*time.Second, managed.Unit.Managed.RestartPolicy.BackoffBase)
				assert.Equal(t, 1.5, managed.Unit.Managed.RestartPolicy.BackoffRate)

				// Check unmanaged unit
				unmanaged := config.Units[1]
				assert.Equal(t, "test-unmanaged", unmanaged.ID)
				assert.Equal(t, units.ControlModeUnmanaged, unmanaged.ControlMode)
				assert.True(t, *unmanaged.Enabled) // Should default to true
				require.NotNil(t, unmanaged.Unit.Unmanaged)
				assert.Equal(t, process.DiscoveryMethodPIDFile, unmanaged.Unit.Unmanaged.Discovery.Method)
				assert.Equal(t, "/var/run/test.pid", unmanaged.Unit.Unmanaged.Discovery.PIDFile)

				// Check integrated unit
				integrated := config.Units[2]
				assert.Equal(t, "test-integrated", integrated.ID)
				assert.Equal(t, units.ControlModeIntegrated, integrated.ControlMode)
				assert.Equal(t, []string{"test-managed"}, integrated.DependsOn)
				require.NotNil(t, integrated.Unit.Integrated)
				assert.Equal(t, 50601, integrated.Unit.Integrated.Port)
				assert.Equal(t, monitoring.ProbeMethodHealth, integrated.Unit.Integrated.HealthCheck.Method)
			},
		},
		{
			name: "minimal valid config",
			configYAML: `
master:
  port: 50055

units:
  - id: "simple-unit"
    control_mode: "managed"
    unit:
      managed:
        execution:
          executable_path: "` + escapeForYAML(executablePath) + `"
`,
			expectError: false,
			validate: func(t *testing.T, config *MasterConfig) {
				assert.Equal(t, 50055, config.Master.Port)
				assert.Equal(t, "info", config.Master.LogLevel) // Should use default
				assert.Len(t, config.Units, 1)

				unit := config.Units[0]
				assert.Equal(t, "simple-unit", unit.ID)
				assert.True(t, *unit.Enabled) // Should default to true
			},
		},
		{
			name: "invalid YAML",
			configYAML: `
master:
  port: 50055
  invalid_yaml: [unclosed
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temporary file
			tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
			require.NoError(t, err)
			defer os.Remove(tmpFile.Name())

			// Write config to file
			_, err = tmpFile.WriteString(tt.configYAML)
			require.NoError(t, err)
			tmpFile.Close()

			// Load configuration
			config, err := LoadConfigFromFile(tmpFile.Name())

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, config)
				if tt.validate != nil {
					tt.validate(t, config)
				}
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	executablePath, _, _ := getTestExecutable()

	managedUnit := func(id string, dependsOn ...string) UnitConfig {
		return UnitConfig{
			ID:          id,
			ControlMode: units.ControlModeManaged,
			Enabled:     boolPtr(true),
			DependsOn:   dependsOn,
			Unit: UnitSectionConfig{
				Managed: &ManagedUnitConfig{
					Execution: process.ExecutionConfig{
						ExecutablePath: executablePath,
					},
				},
			},
		}
	}

	tests := []struct {
		name        string
		config      *MasterConfig
		expectError bool
		errorText   string
	}{
		{
			name: "valid config",
			config: &MasterConfig{
				Master: MasterConfigOptions{
					Port:     50055,
					LogLevel: "info",
				},
				Units: []UnitConfig{managedUnit("test-unit")},
			},
			expectError: false,
		},
		{
			name:        "nil config",
			config:      nil,
			expectError: true,
		},
		{
			name: "invalid port",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: -1},
				Units:  []UnitConfig{managedUnit("test-unit")},
			},
			expectError: true,
		},
		{
			name: "invalid log level",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055, LogLevel: "verbose"},
				Units:  []UnitConfig{managedUnit("test-unit")},
			},
			expectError: true,
			errorText:   "invalid log level",
		},
		{
			name: "duplicate unit IDs",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units:  []UnitConfig{managedUnit("same-id"), managedUnit("same-id")},
			},
			expectError: true,
			errorText:   "duplicate unit ID",
		},
		{
			name: "unsupported control mode",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units: []UnitConfig{
					{
						ID:          "bad-mode",
						ControlMode: units.ControlMode("supervised"),
						Unit: UnitSectionConfig{
							Managed: &ManagedUnitConfig{
								Execution: process.ExecutionConfig{ExecutablePath: executablePath},
							},
						},
					},
				},
			},
			expectError: true,
			errorText:   "unsupported control mode",
		},
		{
			name: "missing mode section",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units: []UnitConfig{
					{
						ID:          "no-section",
						ControlMode: units.ControlModeManaged,
						Unit:        UnitSectionConfig{},
					},
				},
			},
			expectError: true,
			errorText:   "managed section is required",
		},
		{
			name: "mismatched mode section",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units: []UnitConfig{
					{
						ID:          "wrong-section",
						ControlMode: units.ControlModeUnmanaged,
						Unit: UnitSectionConfig{
							Managed: &ManagedUnitConfig{
								Execution: process.ExecutionConfig{ExecutablePath: executablePath},
							},
						},
					},
				},
			},
			expectError: true,
			errorText:   "unmanaged section is required",
		},
		{
			name: "probe timeout must stay below interval",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units: []UnitConfig{
					{
						ID:          "bad-probe",
						ControlMode: units.ControlModeManaged,
						Unit: UnitSectionConfig{
							Managed: &ManagedUnitConfig{
								Execution: process.ExecutionConfig{ExecutablePath: executablePath},
								HealthCheck: &monitoring.ProbeOptions{
									Enabled:          true,
									Interval:         5 * time.Second,
									Timeout:          5 * time.Second,
									FailureThreshold: 3,
								},
							},
						},
					},
				},
			},
			expectError: true,
			errorText:   "timeout must be less than interval",
		},
		{
			name: "unknown dependency",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units:  []UnitConfig{managedUnit("app", "missing-db")},
			},
			expectError: true,
			errorText:   "depends on unknown unit",
		},
		{
			name: "self dependency",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units:  []UnitConfig{managedUnit("app", "app")},
			},
			expectError: true,
			errorText:   "depends on itself",
		},
		{
			name: "dependency cycle",
			config: &MasterConfig{
				Master: MasterConfigOptions{Port: 50055},
				Units: []UnitConfig{
					managedUnit("a", "b"),
					managedUnit("b", "c"),
					managedUnit("c", "a"),
				},
			},
			expectError: true,
			errorText:   "dependency cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)

			if tt.expectError {
				require.Error(t, err)
				if tt.errorText != "" {
					assert.Contains(t, err.Error(), tt.errorText)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	executablePath, _, _ := getTestExecutable()

	config := &MasterConfig{
		Master: MasterConfigOptions{
			// Port not set - should get default
		},
		Units: []UnitConfig{
			{
				ID:          "test-unit",
				ControlMode: units.ControlModeManaged,
				// Enabled not set - should default to true
				Unit: UnitSectionConfig{
					Managed: &ManagedUnitConfig{
						Execution: process.ExecutionConfig{
							ExecutablePath: executablePath,
							// WaitDelay not set - should get default
						},
						// HealthCheck not set - should get enabled defaults
						// RestartPolicy not set - should get defaults
					},
				},
			},
		},
	}

	setConfigDefaults(config)

	// Check master defaults
	assert.Equal(t, 50055, config.Master.Port)
	assert.Equal(t, "info", config.Master.LogLevel)
	assert.Equal(t, 30*time.Second, config.Master.ForceShutdownTimeout)

	// Check unit defaults
	unit := config.Units[0]
	assert.True(t, *unit.Enabled) // Now checking pointer
	managed := unit.Unit.Managed
	assert.Equal(t, 10*time.Second, managed.Execution.WaitDelay)
	require.NotNil(t, managed.HealthCheck)
	assert.True(t, managed.HealthCheck.Enabled)
	assert.Equal(t, 30*time.Second, managed.HealthCheck.Interval)
	assert.Equal(t, 5*time.Second, managed.HealthCheck.Timeout)
	assert.Equal(t, monitoring.ProbeMethodPing, managed.HealthCheck.Method)
	assert.Equal(t, 3, managed.RestartPolicy.MaxRetries)
	assert.Equal(t, time.Second, managed.RestartPolicy.BackoffBase)
	assert.Equal(t, 60*time.Second, managed.RestartPolicy.BackoffCap)
	assert.Equal(t, 2.0, managed.RestartPolicy.BackoffRate)
	assert.Equal(t, 2*time.Minute, managed.RestartPolicy.SustainedHealthyReset)
}

func TestUnmanagedRestartPolicyStaysDisabled(t *testing.T) {
	config := UnitConfig{
		ID:          "observed",
		ControlMode: units.ControlModeUnmanaged,
		Unit: UnitSectionConfig{
			Unmanaged: &UnmanagedUnitConfig{
				Discovery: process.DiscoveryConfig{
					Method:  process.DiscoveryMethodPIDFile,
					PIDFile: "/var/run/observed.pid",
				},
			},
		},
	}

	setUnitConfigDefaults(&config)

	// No restart policy configured: the flattened settings disable
	// restarts instead of inheriting managed-unit defaults.
	settings := config.settings()
	assert.Equal(t, -1, settings.restart.MaxRetries)
	assert.False(t, settings.canTerminate)
}

func TestGetConfigSummary(t *testing.T) {
	executablePath, _, _ := getTestExecutable()

	config := &MasterConfig{
		Master: MasterConfigOptions{
			Port:     50055,
			LogLevel: "debug",
		},
		Units: []UnitConfig{
			{
				ID:          "web-service",
				ControlMode: units.ControlModeManaged,
				Enabled:     boolPtr(true),
				Unit: UnitSectionConfig{
					Managed: &ManagedUnitConfig{
						Execution: process.ExecutionConfig{ExecutablePath: executablePath},
						HealthCheck: &monitoring.ProbeOptions{
							Enabled: true,
							Method:  monitoring.ProbeMethodPing,
						},
					},
				},
			},
			{
				ID:          "db-monitor",
				ControlMode: units.ControlModeUnmanaged,
				Enabled:     boolPtr(false),
				DependsOn:   []string{"web-service"},
				Unit: UnitSectionConfig{
					Unmanaged: &UnmanagedUnitConfig{
						Discovery: process.DiscoveryConfig{Method: process.DiscoveryMethodPIDFile},
					},
				},
			},
		},
	}

	summary := GetConfigSummary(config)

	assert.Equal(t, 50055, summary.MasterPort)
	assert.Equal(t, "debug", summary.LogLevel)
	assert.Equal(t, 2, summary.TotalUnits)
	assert.Equal(t, 1, summary.EnabledUnits)
	assert.Len(t, summary.Units, 2)

	// Check first unit summary
	webUnit := summary.Units[0]
	assert.Equal(t, "web-service", webUnit.ID)
	assert.Equal(t, "managed", webUnit.ControlMode)
	assert.True(t, webUnit.Enabled)
	assert.Equal(t, executablePath, webUnit.ExecutablePath)
	assert.Equal(t, "ping", webUnit.ProbeMethod)

	// Check second unit summary
	dbUnit := summary.Units[1]
	assert.Equal(t, "db-monitor", dbUnit.ID)
	assert.Equal(t, "unmanaged", dbUnit.ControlMode)
	assert.False(t, dbUnit.Enabled)
	assert.Equal(t, "pid-file", dbUnit.DiscoveryMethod)
	assert.Equal(t, []string{"web-service"}, dbUnit.DependsOn)
}

func TestValidateConfigFile(t *testing.T) {
	executablePath, _, _ := getTestExecutable()

	// Create a valid config file
	validConfig := `
master:
  port: 50055

units:
  - id: "test-unit"
    control_mode: "managed"
    unit:
      managed:
        execution:
          executable_path: "` + escapeForYAML(executablePath) + `"
        restart_policy:
          max_retries: 3
          backoff_base: "5s"
          backoff_rate: 1.5
`

	tmpFile, err := os.CreateTemp("", "valid-config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(validConfig)
	require.NoError(t, err)
	tmpFile.Close()

	// Test validation
	err = ValidateConfigFile(tmpFile.Name())
	assert.NoError(t, err)

	// Test with non-existent file
	err = ValidateConfigFile("/non/existent/file.yaml")
	assert.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}
