package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Default application name for the unit master
const DefaultAppName = "hsu-unitmaster"

// ProcessFileConfig holds configuration for process file generation (PID files, port files, etc.)
type ProcessFileConfig struct {
	// Base directory for PID files. If empty, uses OS-appropriate default
	BaseDirectory string

	// Service context - affects directory selection
	ServiceContext ServiceContext

	// Application name for subdirectory creation
	AppName string

	// Create subdirectory for the app (recommended for system services)
	UseSubdirectory bool
}

// ServiceContext defines the context in which the master runs
type ServiceContext string

const (
	// SystemService runs as a system service (daemon)
	SystemService ServiceContext = "system"

	// UserService runs as a user service
	UserService ServiceContext = "user"

	// SessionService runs as a session service (cleaned up on logout)
	SessionService ServiceContext = "session"
)

// ProcessFileManager generates and manages process files (PID files, port
// files) and log directories in OS-appropriate locations.
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

// NewProcessFileManager creates a new process file manager with the given configuration
func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}

	if config.ServiceContext == "" {
		config.ServiceContext = UserService
	}

	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

// GeneratePIDFilePath generates an appropriate PID file path for the given unit ID
func (m *ProcessFileManager) GeneratePIDFilePath(unitID string) string {
	baseDir := m.getBaseDirectory()

	if m.config.UseSubdirectory {
		baseDir = filepath.Join(baseDir, m.config.AppName)
	}

	return filepath.Join(baseDir, unitID+".pid")
}

// GeneratePortFilePath generates an appropriate port file path for the given unit ID
func (m *ProcessFileManager) GeneratePortFilePath(unitID string) string {
	// Same base directory as PID files, .port extension
	pidPath := m.GeneratePIDFilePath(unitID)
	return strings.TrimSuffix(pidPath, ".pid") + ".port"
}

// WritePIDFile writes the process PID to the appropriate file for the given unit ID
func (m *ProcessFileManager) WritePIDFile(unitID string, pid int) error {
	pidFilePath := m.GeneratePIDFilePath(unitID)
	m.logger.Debugf("Writing PID file, unit: %s, pid: %d, path: %s", unitID, pid, pidFilePath)

	if err := ValidateProcessFileDirectory(pidFilePath); err != nil {
		m.logger.Errorf("PID file directory validation failed, unit: %s, path: %s, error: %v", unitID, pidFilePath, err)
		return errors.NewIOError("PID file directory validation failed", err).WithContext("pid_file", pidFilePath)
	}

	pidContent := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(pidFilePath, []byte(pidContent), 0644); err != nil {
		m.logger.Errorf("Failed to write PID file, unit: %s, pid: %d, path: %s, error: %v", unitID, pid, pidFilePath, err)
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", pidFilePath).WithContext("pid", pid)
	}

	m.logger.Infof("PID file written, unit: %s, pid: %d, path: %s", unitID, pid, pidFilePath)
	return nil
}

// ReadPIDFile reads a PID back from the unit's PID file
func (m *ProcessFileManager) ReadPIDFile(unitID string) (int, error) {
	pidFilePath := m.GeneratePIDFilePath(unitID)

	content, err := os.ReadFile(pidFilePath)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", pidFilePath)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid PID in PID file", err).WithContext("pid_file", pidFilePath).WithContext("content", pidStr)
	}

	return pid, nil
}

// RemovePIDFile removes the unit's PID file. Missing files are not an error.
func (m *ProcessFileManager) RemovePIDFile(unitID string) error {
	pidFilePath := m.GeneratePIDFilePath(unitID)
	err := os.Remove(pidFilePath)
	if err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", pidFilePath)
	}
	return nil
}

// WritePortFile writes a port number to a port file
func (m *ProcessFileManager) WritePortFile(unitID string, port int) error {
	portPath := m.GeneratePortFilePath(unitID)
	m.logger.Debugf("Writing port file, unit: %s, port: %d, path: %s", unitID, port, portPath)

	if err := ValidateProcessFileDirectory(portPath); err != nil {
		m.logger.Errorf("Port file directory validation failed, unit: %s, path: %s, error: %v", unitID, portPath, err)
		return errors.NewIOError("port file directory validation failed", err).WithContext("port_file", portPath)
	}

	portContent := fmt.Sprintf("%d\n", port)
	if err := os.WriteFile(portPath, []byte(portContent), 0644); err != nil {
		m.logger.Errorf("Failed to write port file, unit: %s, port: %d, path: %s, error: %v", unitID, port, portPath, err)
		return errors.NewIOError("failed to write port file", err).WithContext("port_file", portPath).WithContext("port", port)
	}

	m.logger.Infof("Port file written, unit: %s, port: %d, path: %s", unitID, port, portPath)
	return nil
}

// ReadPortFile reads a port number from a port file
func (m *ProcessFileManager) ReadPortFile(unitID string) (int, error) {
	portPath := m.GeneratePortFilePath(unitID)
	m.logger.Debugf("Reading port file, unit: %s, path: %s", unitID, portPath)

	content, err := os.ReadFile(portPath)
	if err != nil {
		m.logger.Warnf("Failed to read port file, unit: %s, path: %s, error: %v", unitID, portPath, err)
		return 0, errors.NewIOError("failed to read port file", err).WithContext("port_file", portPath)
	}

	portStr := strings.TrimSpace(string(content))
	port, err := strconv.Atoi(portStr)
	if err != nil {
		m.logger.Errorf("Invalid port content in port file, unit: %s, path: %s, content: %s, error: %v", unitID, portPath, portStr, err)
		return 0, errors.NewValidationError("invalid port in port file", err).WithContext("port_file", portPath).WithContext("content", portStr)
	}

	return port, nil
}

// RemovePortFile removes the unit's port file. Missing files are not an error.
func (m *ProcessFileManager) RemovePortFile(unitID string) error {
	portPath := m.GeneratePortFilePath(unitID)
	err := os.Remove(portPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove port file", err).WithContext("port_file", portPath)
	}
	return nil
}

// GenerateLogDirectoryPath generates the appropriate log directory path for the application
func (m *ProcessFileManager) GenerateLogDirectoryPath() string {
	baseDir := m.getLogBaseDirectory()

	if m.config.UseSubdirectory {
		return filepath.Join(baseDir, m.config.AppName, "logs")
	}

	return filepath.Join(baseDir, "logs")
}

// GenerateUnitLogDirectoryPath generates the log directory path for unit-specific logs
func (m *ProcessFileManager) GenerateUnitLogDirectoryPath() string {
	return filepath.Join(m.GenerateLogDirectoryPath(), "units")
}

// GenerateLogFilePath generates a complete log file path from a relative template
func (m *ProcessFileManager) GenerateLogFilePath(relativeTemplate string) string {
	logDir := m.GenerateLogDirectoryPath()
	return filepath.Join(logDir, relativeTemplate)
}

// GenerateUnitLogFilePath generates a unit-specific log file path from a
// relative template, resolving the {unit_id} placeholder.
func (m *ProcessFileManager) GenerateUnitLogFilePath(relativeTemplate string, unitID string) string {
	unitLogDir := m.GenerateUnitLogDirectoryPath()
	resolvedTemplate := strings.ReplaceAll(relativeTemplate, "{unit_id}", unitID)
	return filepath.Join(unitLogDir, resolvedTemplate)
}

// getBaseDirectory returns the appropriate base directory for PID files
func (m *ProcessFileManager) getBaseDirectory() string {
	if m.config.BaseDirectory != "" {
		return m.config.BaseDirectory
	}

	switch m.config.ServiceContext {
	case SystemService:
		return m.getSystemServiceDirectory()
	case UserService:
		return m.getUserServiceDirectory()
	case SessionService:
		return m.getSessionServiceDirectory()
	default:
		return m.getUserServiceDirectory()
	}
}

func (m *ProcessFileManager) getSystemServiceDirectory() string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = "C:\\ProgramData"
		}
		return programData

	case "darwin":
		return "/var/run"

	default:
		// Modern standard is /run, with fallback to /var/run
		if _, err := os.Stat("/run"); err == nil {
			return "/run"
		}
		return "/var/run"
	}
}

func (m *ProcessFileManager) getUserServiceDirectory() string {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile != "" {
				localAppData = filepath.Join(userProfile, "AppData", "Local")
			} else {
				localAppData = "C:\\Users\\Default\\AppData\\Local"
			}
		}
		return localAppData

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		return filepath.Join(homeDir, "Library", "Application Support")

	default:
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			return runtimeDir
		}
		return "/tmp"
	}
}

func (m *ProcessFileManager) getSessionServiceDirectory() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return os.TempDir()

	default:
		// Linux systemd session services
		uid := os.Getuid()
		sessionDir := fmt.Sprintf("/run/user/%d", uid)
		if _, err := os.Stat(sessionDir); err == nil {
			return sessionDir
		}
		return "/tmp"
	}
}

// ValidateProcessFileDirectory validates that the process file directory exists and is writable
func ValidateProcessFileDirectory(path string) error {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.NewIOError("failed to create process file directory", err).WithContext("directory", dir)
			}
		} else {
			return errors.NewIOError("failed to access process file directory", err).WithContext("directory", dir)
		}
	} else if !info.IsDir() {
		return errors.NewValidationError("process file path is not a directory", nil).WithContext("path", dir)
	}

	// Check if directory is writable
	testFile := filepath.Join(dir, ".write_test")
	if file, err := os.Create(testFile); err != nil {
		return errors.NewPermissionError("process file directory is not writable", err).WithContext("directory", dir)
	} else {
		file.Close()
		os.Remove(testFile)
	}

	return nil
}

// GetRecommendedProcessFileConfig returns recommended process file configuration for different deployment scenarios
func GetRecommendedProcessFileConfig(scenario string, appName string) ProcessFileConfig {
	if appName == "" {
		appName = DefaultAppName
	}

	switch strings.ToLower(scenario) {
	case "system", "daemon", "service":
		return ProcessFileConfig{
			ServiceContext:  SystemService,
			AppName:         appName,
			UseSubdirectory: true,
		}

	case "user", "personal":
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			UseSubdirectory: true,
		}

	case "session", "desktop":
		return ProcessFileConfig{
			ServiceContext:  SessionService,
			AppName:         appName,
			UseSubdirectory: false,
		}

	case "development", "dev", "test":
		return ProcessFileConfig{
			BaseDirectory:   filepath.Join(os.TempDir(), appName+"-dev"),
			ServiceContext:  UserService,
			AppName:         appName,
			UseSubdirectory: false,
		}

	default:
		return ProcessFileConfig{
			ServiceContext:  UserService,
			AppName:         appName,
			UseSubdirectory: true,
		}
	}
}

// getLogBaseDirectory returns the appropriate base directory for log files
func (m *ProcessFileManager) getLogBaseDirectory() string {
	if m.config.BaseDirectory != "" {
		return filepath.Join(m.config.BaseDirectory, "logs")
	}

	switch m.config.ServiceContext {
	case SystemService:
		return m.getSystemLogDirectory()
	case UserService:
		return m.getUserLogDirectory()
	case SessionService:
		return m.getSessionLogDirectory()
	default:
		return m.getUserLogDirectory()
	}
}

func (m *ProcessFileManager) getSystemLogDirectory() string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = "C:\\ProgramData"
		}
		return programData

	default:
		return "/var/log"
	}
}

func (m *ProcessFileManager) getUserLogDirectory() string {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile != "" {
				localAppData = filepath.Join(userProfile, "AppData", "Local")
			} else {
				localAppData = "C:\\Users\\Default\\AppData\\Local"
			}
		}
		return filepath.Join(localAppData, "logs")

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp/logs"
		}
		return filepath.Join(homeDir, "Library", "Logs")

	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "logs")
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp/logs"
		}
		return filepath.Join(homeDir, ".local", "share", "logs")
	}
}

func (m *ProcessFileManager) getSessionLogDirectory() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return filepath.Join(os.TempDir(), "logs")

	default:
		uid := os.Getuid()
		sessionDir := fmt.Sprintf("/run/user/%d/logs", uid)
		if _, err := os.Stat(filepath.Dir(sessionDir)); err == nil {
			return sessionDir
		}
		return filepath.Join("/tmp", "logs")
	}
}
