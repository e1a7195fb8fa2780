package master

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	logconfig "github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/monitoring"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
	"github.com/core-tools/hsu-unitmaster/pkg/units"

	"gopkg.in/yaml.v3"
)

// MasterConfig represents the top-level configuration file structure
type MasterConfig struct {
	Master        MasterConfigOptions            `yaml:"master"`
	Units         []UnitConfig                   `yaml:"units"`
	LogCollection *logconfig.LogCollectionConfig `yaml:"log_collection,omitempty"`
}

// MasterConfigOptions represents master-level configuration
type MasterConfigOptions struct {
	Port                 int           `yaml:"port"`
	LogLevel             string        `yaml:"log_level,omitempty"`
	ForceShutdownTimeout time.Duration `yaml:"force_shutdown_timeout,omitempty"`
}

// UnitConfig declares a single unit. The control mode selects which
// section of Unit must be populated.
type UnitConfig struct {
	ID          string            `yaml:"id"`
	ControlMode units.ControlMode `yaml:"control_mode"`
	Enabled     *bool             `yaml:"enabled,omitempty"` // Pointer to distinguish unset from false
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Unit        UnitSectionConfig `yaml:"unit"`
}

// UnitSectionConfig is a union type; exactly the section matching
// UnitConfig.ControlMode must be set.
type UnitSectionConfig struct {
	Managed    *ManagedUnitConfig    `yaml:"managed,omitempty"`
	Unmanaged  *UnmanagedUnitConfig  `yaml:"unmanaged,omitempty"`
	Integrated *IntegratedUnitConfig `yaml:"integrated,omitempty"`
}

// ManagedUnitConfig configures a unit the master spawns and owns at the
// OS level, without a control-plane API.
type ManagedUnitConfig struct {
	Execution process.ExecutionConfig `yaml:"execution"`

	// Discovery, when set, lets the master attach to a surviving
	// process before falling back to spawning a fresh one.
	Discovery *process.DiscoveryConfig `yaml:"discovery,omitempty"`

	HealthCheck     *monitoring.ProbeOptions       `yaml:"health_check,omitempty"`
	RestartPolicy   units.RestartPolicy            `yaml:"restart_policy,omitempty"`
	Limits          *resourcelimits.ResourceLimits `yaml:"limits,omitempty"`
	Log             *logconfig.UnitLogConfig       `yaml:"log,omitempty"`
	GracefulTimeout time.Duration                  `yaml:"graceful_timeout,omitempty"`
}

// UnmanagedUnitConfig configures a unit that runs outside master
// ownership; the master only discovers and observes it.
type UnmanagedUnitConfig struct {
	Discovery   process.DiscoveryConfig  `yaml:"discovery"`
	HealthCheck *monitoring.ProbeOptions `yaml:"health_check,omitempty"`

	// RestartPolicy defaults to disabled for unmanaged units; enabling
	// it makes the master retry discovery when the process disappears.
	RestartPolicy *units.RestartPolicy `yaml:"restart_policy,omitempty"`

	// CanTerminate allows the master to kill the discovered process on
	// stop; the default is observe-only.
	CanTerminate    bool          `yaml:"can_terminate,omitempty"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout,omitempty"`
}

// IntegratedUnitConfig configures a unit with full lifecycle control
// plus the core gRPC contract.
type IntegratedUnitConfig struct {
	Execution process.ExecutionConfig  `yaml:"execution"`
	Discovery *process.DiscoveryConfig `yaml:"discovery,omitempty"`

	// Port of the unit's core endpoint. Zero means the unit allocates
	// its own port and publishes it through its port file.
	Port int `yaml:"port,omitempty"`

	HealthCheck     *monitoring.ProbeOptions       `yaml:"health_check,omitempty"`
	RestartPolicy   units.RestartPolicy            `yaml:"restart_policy,omitempty"`
	Limits          *resourcelimits.ResourceLimits `yaml:"limits,omitempty"`
	Log             *logconfig.UnitLogConfig       `yaml:"log,omitempty"`
	GracefulTimeout time.Duration                  `yaml:"graceful_timeout,omitempty"`
}

// LoadConfigFromFile loads master configuration from a YAML file
func LoadConfigFromFile(filename string) (*MasterConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config MasterConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *MasterConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateMasterConfig(&config.Master); err != nil {
		return errors.NewValidationError("invalid master configuration", err)
	}

	if err := validateUnitsConfig(config.Units); err != nil {
		return errors.NewValidationError("invalid units configuration", err)
	}

	if config.LogCollection != nil {
		if err := config.LogCollection.Validate(); err != nil {
			return errors.NewValidationError("invalid log collection configuration", err)
		}
	}

	return nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *MasterConfig) {
	if config.Master.Port == 0 {
		config.Master.Port = 50055 // Default port
	}
	if config.Master.LogLevel == "" {
		config.Master.LogLevel = "info"
	}
	if config.Master.ForceShutdownTimeout == 0 {
		config.Master.ForceShutdownTimeout = 30 * time.Second
	}

	for i := range config.Units {
		setUnitConfigDefaults(&config.Units[i])
	}
}

func setUnitConfigDefaults(unit *UnitConfig) {
	// Default enabled to true if not specified
	if unit.Enabled == nil {
		enabled := true
		unit.Enabled = &enabled
	}

	switch {
	case unit.Unit.Managed != nil:
		setManagedUnitDefaults(unit.Unit.Managed)
	case unit.Unit.Unmanaged != nil:
		setUnmanagedUnitDefaults(unit.Unit.Unmanaged)
	case unit.Unit.Integrated != nil:
		setIntegratedUnitDefaults(unit.Unit.Integrated)
	}
}

func setManagedUnitDefaults(config *ManagedUnitConfig) {
	if config.Execution.WaitDelay == 0 {
		config.Execution.WaitDelay = 10 * time.Second
	}
	config.HealthCheck = probeOptionsWithDefaults(config.HealthCheck)
	config.RestartPolicy = config.RestartPolicy.WithDefaults()
}

func setUnmanagedUnitDefaults(config *UnmanagedUnitConfig) {
	if config.Discovery.CheckInterval == 0 {
		config.Discovery.CheckInterval = 30 * time.Second
	}
	if config.GracefulTimeout == 0 {
		config.GracefulTimeout = 30 * time.Second
	}
	config.HealthCheck = probeOptionsWithDefaults(config.HealthCheck)
	// The master cannot respawn a process it does not own; restarting an
	// unmanaged unit means retrying discovery, which is opt-in.
	if config.RestartPolicy != nil {
		policy := config.RestartPolicy.WithDefaults()
		config.RestartPolicy = &policy
	}
}

func setIntegratedUnitDefaults(config *IntegratedUnitConfig) {
	if config.Execution.WaitDelay == 0 {
		config.Execution.WaitDelay = 10 * time.Second
	}
	config.HealthCheck = probeOptionsWithDefaults(config.HealthCheck)
	config.RestartPolicy = config.RestartPolicy.WithDefaults()
}

// probeOptionsWithDefaults fills a missing health check section with an
// enabled default probe configuration.
func probeOptionsWithDefaults(options *monitoring.ProbeOptions) *monitoring.ProbeOptions {
	if options == nil {
		defaulted := monitoring.ProbeOptions{Enabled: true}.WithDefaults()
		return &defaulted
	}
	defaulted := options.WithDefaults()
	return &defaulted
}

// Validation functions

func validateMasterConfig(config *MasterConfigOptions) error {
	if err := ValidatePort(config.Port); err != nil {
		return err
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if config.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			return errors.NewValidationError(
				fmt.Sprintf("invalid log level: %s", config.LogLevel),
				nil,
			).WithContext("valid_levels", "debug, info, warn, error")
		}
	}

	if config.ForceShutdownTimeout < 0 {
		return errors.NewValidationError("force shutdown timeout cannot be negative", nil)
	}

	return nil
}

func validateUnitsConfig(unitConfigs []UnitConfig) error {
	if len(unitConfigs) == 0 {
		return nil // Allow empty units list
	}

	// Check for duplicate unit IDs
	seenIDs := make(map[string]int)
	for i, unit := range unitConfigs {
		if err := units.ValidateUnitID(unit.ID); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid unit ID at index %d", i),
				err,
			).WithContext("unit_id", unit.ID)
		}

		if prevIndex, exists := seenIDs[unit.ID]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate unit ID '%s' found at indices %d and %d", unit.ID, prevIndex, i),
				nil,
			)
		}
		seenIDs[unit.ID] = i

		if !unit.ControlMode.Valid() {
			return errors.NewValidationError(
				fmt.Sprintf("unsupported control mode at index %d: %s", i, unit.ControlMode),
				nil,
			).WithContext("unit_id", unit.ID).WithContext("supported_modes", "unmanaged, managed, integrated")
		}

		if err := validateUnitSectionConfig(unit.ControlMode, unit.Unit); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid unit configuration at index %d", i),
				err,
			).WithContext("unit_id", unit.ID).WithContext("control_mode", string(unit.ControlMode))
		}
	}

	// Dependencies must name known units and form no cycles
	for i, unit := range unitConfigs {
		for _, dep := range unit.DependsOn {
			if dep == unit.ID {
				return errors.NewValidationError(
					fmt.Sprintf("unit '%s' at index %d depends on itself", unit.ID, i),
					nil,
				)
			}
			if _, exists := seenIDs[dep]; !exists {
				return errors.NewValidationError(
					fmt.Sprintf("unit '%s' at index %d depends on unknown unit '%s'", unit.ID, i, dep),
					nil,
				)
			}
		}
	}

	if cycle := findDependencyCycle(unitConfigs); len(cycle) > 0 {
		return errors.NewValidationError(
			fmt.Sprintf("dependency cycle detected: %v", cycle),
			nil,
		)
	}

	return nil
}

func validateUnitSectionConfig(mode units.ControlMode, section UnitSectionConfig) error {
	switch mode {
	case units.ControlModeManaged:
		if section.Managed == nil {
			return errors.NewValidationError("managed section is required for managed unit", nil)
		}
		if section.Unmanaged != nil || section.Integrated != nil {
			return errors.NewValidationError("only the managed section may be specified for a managed unit", nil)
		}
		return validateManagedUnitConfig(section.Managed)

	case units.ControlModeUnmanaged:
		if section.Unmanaged == nil {
			return errors.NewValidationError("unmanaged section is required for unmanaged unit", nil)
		}
		if section.Managed != nil || section.Integrated != nil {
			return errors.NewValidationError("only the unmanaged section may be specified for an unmanaged unit", nil)
		}
		return validateUnmanagedUnitConfig(section.Unmanaged)

	case units.ControlModeIntegrated:
		if section.Integrated == nil {
			return errors.NewValidationError("integrated section is required for integrated unit", nil)
		}
		if section.Managed != nil || section.Unmanaged != nil {
			return errors.NewValidationError("only the integrated section may be specified for an integrated unit", nil)
		}
		return validateIntegratedUnitConfig(section.Integrated)

	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported control mode: %s", mode), nil)
	}
}

func validateManagedUnitConfig(config *ManagedUnitConfig) error {
	if err := process.ValidateExecutionConfig(config.Execution); err != nil {
		return errors.NewValidationError("invalid execution configuration", err)
	}
	if config.Discovery != nil {
		if err := process.ValidateDiscoveryConfig(*config.Discovery); err != nil {
			return errors.NewValidationError("invalid discovery configuration", err)
		}
	}
	return validateCommonUnitConfig(config.HealthCheck, config.RestartPolicy, config.GracefulTimeout)
}

func validateUnmanagedUnitConfig(config *UnmanagedUnitConfig) error {
	if err := process.ValidateDiscoveryConfig(config.Discovery); err != nil {
		return errors.NewValidationError("invalid discovery configuration", err)
	}
	policy := units.RestartPolicy{}
	if config.RestartPolicy != nil {
		policy = *config.RestartPolicy
	}
	return validateCommonUnitConfig(config.HealthCheck, policy, config.GracefulTimeout)
}

func validateIntegratedUnitConfig(config *IntegratedUnitConfig) error {
	if err := process.ValidateExecutionConfig(config.Execution); err != nil {
		return errors.NewValidationError("invalid execution configuration", err)
	}
	if config.Discovery != nil {
		if err := process.ValidateDiscoveryConfig(*config.Discovery); err != nil {
			return errors.NewValidationError("invalid discovery configuration", err)
		}
	}
	if config.Port != 0 {
		if err := ValidatePort(config.Port); err != nil {
			return errors.NewValidationError("invalid core endpoint port", err)
		}
	}
	return validateCommonUnitConfig(config.HealthCheck, config.RestartPolicy, config.GracefulTimeout)
}

func validateCommonUnitConfig(health *monitoring.ProbeOptions, policy units.RestartPolicy, graceful time.Duration) error {
	if health != nil && health.Enabled {
		if err := monitoring.ValidateProbeOptions(*health); err != nil {
			return errors.NewValidationError("invalid health check configuration", err)
		}
	}
	if err := units.ValidateRestartPolicy(policy); err != nil {
		return errors.NewValidationError("invalid restart policy", err)
	}
	if graceful < 0 {
		return errors.NewValidationError("graceful timeout cannot be negative", nil)
	}
	return nil
}

// findDependencyCycle runs a coloring DFS over the depends_on edges and
// returns one cycle when present, nil otherwise.
func findDependencyCycle(unitConfigs []UnitConfig) []string {
	dependsOn := make(map[string][]string, len(unitConfigs))
	for _, unit := range unitConfigs {
		dependsOn[unit.ID] = unit.DependsOn
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	colors := make(map[string]int, len(dependsOn))

	var cycle []string
	var visit func(id string, trail []string) bool
	visit = func(id string, trail []string) bool {
		colors[id] = visiting
		trail = append(trail, id)
		for _, dep := range dependsOn[id] {
			switch colors[dep] {
			case visiting:
				// Close the loop for the error message.
				for i, node := range trail {
					if node == dep {
						cycle = append(append([]string{}, trail[i:]...), dep)
						return true
					}
				}
				cycle = []string{dep, id, dep}
				return true
			case unvisited:
				if visit(dep, trail) {
					return true
				}
			}
		}
		colors[id] = done
		return false
	}

	for _, unit := range unitConfigs {
		if colors[unit.ID] == unvisited {
			if visit(unit.ID, nil) {
				return cycle
			}
		}
	}
	return nil
}

// unitSettings is the flattened view of one unit's mode section, used
// by the supervisor so mode differences stay in the config layer.
type unitSettings struct {
	execution    *process.ExecutionConfig
	discovery    *process.DiscoveryConfig
	endpointPort int
	health       monitoring.ProbeOptions
	restart      units.RestartPolicy
	limits       *resourcelimits.ResourceLimits
	log          *logconfig.UnitLogConfig
	graceful     time.Duration
	canTerminate bool
}

// settings flattens the mode-specific section. Call only on a validated
// and defaulted config.
func (c UnitConfig) settings() unitSettings {
	switch {
	case c.Unit.Managed != nil:
		m := c.Unit.Managed
		return unitSettings{
			execution:    &m.Execution,
			discovery:    m.Discovery,
			health:       *m.HealthCheck,
			restart:      m.RestartPolicy,
			limits:       m.Limits,
			log:          m.Log,
			graceful:     m.GracefulTimeout,
			canTerminate: true,
		}
	case c.Unit.Unmanaged != nil:
		u := c.Unit.Unmanaged
		// Restarts stay disabled unless explicitly configured.
		restart := units.RestartPolicy{MaxRetries: -1}
		if u.RestartPolicy != nil {
			restart = *u.RestartPolicy
		}
		return unitSettings{
			discovery:    &u.Discovery,
			health:       *u.HealthCheck,
			restart:      restart,
			graceful:     u.GracefulTimeout,
			canTerminate: u.CanTerminate,
		}
	case c.Unit.Integrated != nil:
		i := c.Unit.Integrated
		return unitSettings{
			execution:    &i.Execution,
			discovery:    i.Discovery,
			endpointPort: i.Port,
			health:       *i.HealthCheck,
			restart:      i.RestartPolicy,
			limits:       i.Limits,
			log:          i.Log,
			graceful:     i.GracefulTimeout,
			canTerminate: true,
		}
	}
	return unitSettings{}
}

// definition maps the declaration onto the registry's Definition.
func (c UnitConfig) definition() units.Definition {
	return units.Definition{
		ID:            c.ID,
		ControlMode:   c.ControlMode,
		Metadata:      c.Metadata,
		DependsOn:     c.DependsOn,
		RestartPolicy: c.settings().restart,
	}
}
