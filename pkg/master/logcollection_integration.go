package master

import (
	"context"
	"fmt"

	"github.com/core-tools/hsu-unitmaster/pkg/logcollection"
	logconfig "github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"
)

// LogCollectionIntegration wires the log collection service into the
// master: it owns the service lifecycle and resolves per-unit log
// configuration against the file-level defaults.
type LogCollectionIntegration struct {
	service     logcollection.LogCollectionService
	config      logconfig.LogCollectionConfig
	pathManager *processfile.ProcessFileManager
	logger      logging.Logger
	enabled     bool
}

// NewLogCollectionIntegration builds the integration from the
// log_collection section of the master configuration. A missing
// section enables collection with defaults; an explicitly disabled
// section turns it off.
func NewLogCollectionIntegration(cfg *logconfig.LogCollectionConfig, logger logging.Logger) (*LogCollectionIntegration, error) {
	integration := &LogCollectionIntegration{logger: logger}

	switch {
	case cfg == nil:
		defaultConfig := logconfig.DefaultLogCollectionConfig()
		cfg = &defaultConfig
		logger.Infof("No log_collection section found in config - using default log collection configuration")
	case cfg.Enabled:
		logger.Infof("Using log collection configuration from config file")
	default:
		logger.Debugf("Log collection is explicitly disabled in configuration")
		return integration, nil
	}

	pathManager := processfile.NewProcessFileManager(processfile.ProcessFileConfig{}, logger)

	structuredLogger, err := logcollection.NewStructuredLogger("zap", logcollection.InfoLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create structured logger: %w", err)
	}

	integration.service = logcollection.NewLogCollectionServiceWithPathManager(*cfg, structuredLogger, pathManager)
	integration.config = *cfg
	integration.pathManager = pathManager
	integration.enabled = true

	logger.Infof("Log collection integration initialized, global aggregation: %t, default unit capture: stdout=%t, stderr=%t",
		cfg.GlobalAggregation.Enabled, cfg.DefaultUnit.CaptureStdout, cfg.DefaultUnit.CaptureStderr)

	return integration, nil
}

// Start starts the log collection service
func (l *LogCollectionIntegration) Start(ctx context.Context) error {
	if l == nil || !l.enabled {
		return nil
	}
	if err := l.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start log collection service: %w", err)
	}
	l.logger.Infof("Log collection service started")
	return nil
}

// Stop stops the log collection service
func (l *LogCollectionIntegration) Stop() error {
	if l == nil || !l.enabled {
		return nil
	}
	if err := l.service.Stop(); err != nil {
		return fmt.Errorf("failed to stop log collection service: %w", err)
	}
	l.logger.Infof("Log collection service stopped")
	return nil
}

// Service returns the collection service, nil when disabled.
func (l *LogCollectionIntegration) Service() logcollection.LogCollectionService {
	if l == nil || !l.enabled {
		return nil
	}
	return l.service
}

// IsEnabled reports whether log collection is active.
func (l *LogCollectionIntegration) IsEnabled() bool {
	return l != nil && l.enabled
}

// DefaultUnitConfig returns the file-level default unit log section.
func (l *LogCollectionIntegration) DefaultUnitConfig() *logconfig.UnitLogConfig {
	if l == nil || !l.enabled {
		return nil
	}
	defaultConfig := l.config.DefaultUnit
	return &defaultConfig
}

// GetPathManager returns the path manager used for log file paths.
func (l *LogCollectionIntegration) GetPathManager() *processfile.ProcessFileManager {
	if l == nil {
		return nil
	}
	return l.pathManager
}

// effectiveUnitLogConfig resolves the log configuration for one unit's
// process controller: the unit's own log section when present, the
// file-level default otherwise, nil when collection is disabled.
func (m *Master) effectiveUnitLogConfig(cfg UnitConfig) *logconfig.UnitLogConfig {
	if !m.logs.IsEnabled() {
		return nil
	}
	if log := cfg.settings().log; log != nil {
		return log
	}
	return m.logs.DefaultUnitConfig()
}
