package master

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

func Run(runDuration int, configFile string, enableLogCollection bool, logger logging.Logger) error {
	logger.Infof("Master runner starting...")

	// Create context with run duration
	ctx := context.Background()
	if runDuration > 0 {
		duration := time.Duration(runDuration) * time.Second
		logger.Infof("Using RUN DURATION of %s", duration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	// Log configuration file
	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	// Log log collection status
	if enableLogCollection {
		logger.Infof("Log collection is ENABLED - unit logs will be collected!")
	} else {
		logger.Infof("Log collection is DISABLED")
	}

	// Load configuration
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	// Validate configuration
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	logger.Infof("Configuration loaded successfully from %s", configFile)
	logger.Infof("Master port: %d, Units: %d", config.Master.Port, len(config.Units))

	var logIntegration *LogCollectionIntegration
	if enableLogCollection {
		// Create log collection integration
		logIntegration, err = NewLogCollectionIntegration(config.LogCollection, logger)
		if err != nil {
			return errors.NewInternalError("failed to create log collection integration", err)
		}

		// Start log collection service
		if err := logIntegration.Start(ctx); err != nil {
			return errors.NewInternalError("failed to start log collection", err)
		}
		defer logIntegration.Stop()

		if logIntegration.IsEnabled() {
			logger.Infof("Log collection service started successfully")
		} else {
			logger.Infof("Log collection is disabled")
		}
	}

	// Create master options from config
	masterOptions := MasterOptions{
		Port:                 config.Master.Port,
		ForceShutdownTimeout: config.Master.ForceShutdownTimeout,
	}

	// Create master instance
	master, err := NewMaster(masterOptions, logIntegration, logger)
	if err != nil {
		return errors.NewInternalError("failed to create master", err)
	}

	// Add all enabled units to master (registration phase)
	var unitIDs []string
	for _, unit := range config.Units {
		if unit.Enabled != nil && !*unit.Enabled {
			logger.Infof("Skipping disabled unit, id: %s", unit.ID)
			continue
		}
		if err := master.AddUnit(ctx, unit); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("failed to add unit: %s", unit.ID),
				err,
			).WithContext("unit_id", unit.ID)
		}
		unitIDs = append(unitIDs, unit.ID)
		logger.Infof("Added unit: %s", unit.ID)
	}

	// Start master
	if err := master.Start(ctx); err != nil {
		return errors.NewInternalError("failed to start master", err)
	}

	logger.Infof("Enabling signal handling...")

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	logger.Infof("Master is ready, starting units...")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		// Start all units (lifecycle phase)
		for _, id := range unitIDs {
			if err := master.StartUnit(ctx, id); err != nil {
				logger.Errorf("Failed to start unit %s: %v", id, err)
				// Continue with other units rather than failing completely
				continue
			}
			logger.Infof("Started unit: %s", id)
		}

		logger.Infof("All units started, master is fully operational")
	}()

	// Wait for graceful shutdown or timeout
	select {
	case receivedSignal := <-sig:
		logger.Infof("Master runner received signal: %v", receivedSignal)
		if runtime.GOOS == "windows" {
			if receivedSignal != os.Interrupt {
				logger.Errorf("Wrong signal received: got %q, want %q\n", receivedSignal, os.Interrupt)
				os.Exit(42)
			}
		}
	case <-ctx.Done():
		logger.Infof("Master runner timed out")
	}

	logger.Infof("Waiting for units start to finish...")

	// Wait for starting units to finish
	wg.Wait()

	logger.Infof("Ready to stop master...")

	// Stop master (fresh context so shutdown is not bound to the
	// expired run duration)
	if err := master.Stop(context.Background()); err != nil {
		logger.Errorf("Master stop finished with errors: %v", err)
	}

	logger.Infof("Master runner stopped")

	return nil
}

// ValidateConfigFile validates a configuration file without loading/running
// This is useful for configuration testing and CI/CD validation
func ValidateConfigFile(configFile string) error {
	// Load configuration
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	// Validate configuration
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return nil
}

// GetConfigSummary returns a human-readable summary of the configuration
// This is useful for debugging and operational visibility
func GetConfigSummary(config *MasterConfig) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		MasterPort: config.Master.Port,
		LogLevel:   config.Master.LogLevel,
		Units:      make([]UnitSummary, 0, len(config.Units)),
	}

	for _, unit := range config.Units {
		enabled := false
		if unit.Enabled != nil {
			enabled = *unit.Enabled
		}

		unitSummary := UnitSummary{
			ID:          unit.ID,
			ControlMode: string(unit.ControlMode),
			Enabled:     enabled,
			DependsOn:   unit.DependsOn,
		}

		// Add mode-specific information
		switch {
		case unit.Unit.Managed != nil:
			unitSummary.ExecutablePath = unit.Unit.Managed.Execution.ExecutablePath
			if unit.Unit.Managed.HealthCheck != nil {
				unitSummary.ProbeMethod = string(unit.Unit.Managed.HealthCheck.Method)
			}
		case unit.Unit.Unmanaged != nil:
			unitSummary.DiscoveryMethod = string(unit.Unit.Unmanaged.Discovery.Method)
			if unit.Unit.Unmanaged.HealthCheck != nil {
				unitSummary.ProbeMethod = string(unit.Unit.Unmanaged.HealthCheck.Method)
			}
		case unit.Unit.Integrated != nil:
			unitSummary.ExecutablePath = unit.Unit.Integrated.Execution.ExecutablePath
			if unit.Unit.Integrated.HealthCheck != nil {
				unitSummary.ProbeMethod = string(unit.Unit.Integrated.HealthCheck.Method)
			}
		}

		summary.Units = append(summary.Units, unitSummary)
	}

	summary.TotalUnits = len(summary.Units)
	summary.EnabledUnits = 0
	for _, unit := range summary.Units {
		if unit.Enabled {
			summary.EnabledUnits++
		}
	}

	return summary
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	MasterPort   int           `json:"master_port"`
	LogLevel     string        `json:"log_level"`
	TotalUnits   int           `json:"total_units"`
	EnabledUnits int           `json:"enabled_units"`
	Units        []UnitSummary `json:"units"`
	Error        string        `json:"error,omitempty"`
}

// UnitSummary provides a summary of unit configuration
type UnitSummary struct {
	ID              string   `json:"id"`
	ControlMode     string   `json:"control_mode"`
	Enabled         bool     `json:"enabled"`
	DependsOn       []string `json:"depends_on,omitempty"`
	ExecutablePath  string   `json:"executable_path,omitempty"`
	DiscoveryMethod string   `json:"discovery_method,omitempty"`
	ProbeMethod     string   `json:"probe_method,omitempty"`
}
