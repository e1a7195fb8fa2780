package logcollection

import (
	"fmt"
	"log"
	"strings"

	"github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// NewStructuredLogger creates a structured logger for the given
// backend. "zap" is the only backend currently built in.
func NewStructuredLogger(backend string, level LogLevel) (StructuredLogger, error) {
	switch backend {
	case "zap", "":
		cfg := DefaultZapConfig()
		cfg.Level = level
		return NewZapAdapter(cfg)
	default:
		return nil, fmt.Errorf("unsupported logging backend: %s", backend)
	}
}

// QuickLogger returns a zap-backed logger with default settings,
// falling back to the standard log package if zap fails to initialize.
func QuickLogger(level LogLevel) StructuredLogger {
	logger, err := NewStructuredLogger("zap", level)
	if err != nil {
		return WrapLogger(logging.NewLogger("", logging.LogFuncs{
			Debugf: log.Printf,
			Infof:  log.Printf,
			Warnf:  log.Printf,
			Errorf: log.Printf,
		}))
	}
	return logger
}

// DevelopmentLogger returns a console-format debug logger with caller
// annotations.
func DevelopmentLogger() (StructuredLogger, error) {
	return NewZapAdapter(ZapConfig{
		Level:  DebugLevel,
		Format: "console",
		Output: "stdout",
		Caller: true,
	})
}

// FileLogger returns a JSON logger writing to a rotating file.
func FileLogger(path string, rotation config.RotationConfig, level LogLevel) (StructuredLogger, error) {
	return NewZapAdapter(ZapConfig{
		Level:    level,
		Format:   "json",
		Output:   path,
		Rotation: rotation,
	})
}

// NewLogFuncs adapts a structured logger to the LogFuncs consumed by
// library packages.
func NewLogFuncs(logger StructuredLogger) logging.LogFuncs {
	return logging.LogFuncs{
		LogLevelf: func(level int, format string, args ...interface{}) {
			switch level {
			case logging.LogLevelDebug:
				logger.Debugf(format, args...)
			case logging.LogLevelInfo:
				logger.Infof(format, args...)
			case logging.LogLevelWarn:
				logger.Warnf(format, args...)
			case logging.LogLevelError:
				logger.Errorf(format, args...)
			}
		},
		Debugf: logger.Debugf,
		Infof:  logger.Infof,
		Warnf:  logger.Warnf,
		Errorf: logger.Errorf,
	}
}

// NewLoggerAdapter wraps a structured logger as a plain logging.Logger.
func NewLoggerAdapter(logger StructuredLogger) logging.Logger {
	return logging.NewLogger("", NewLogFuncs(logger))
}

// WrapLogger lifts a plain logging.Logger into the structured
// interface. Fields render as trailing "key: value" pairs.
func WrapLogger(logger logging.Logger) StructuredLogger {
	return &plainWrapper{logger: logger}
}

type plainWrapper struct {
	logger logging.Logger
	fields []LogField
}

func (w *plainWrapper) logf(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...) + formatFieldsSuffix(w.fields)
	switch level {
	case DebugLevel:
		w.logger.Debugf("%s", message)
	case InfoLevel:
		w.logger.Infof("%s", message)
	case WarnLevel:
		w.logger.Warnf("%s", message)
	case ErrorLevel:
		w.logger.Errorf("%s", message)
	}
}

func (w *plainWrapper) Debugf(format string, args ...interface{}) {
	w.logf(DebugLevel, format, args...)
}

func (w *plainWrapper) Infof(format string, args ...interface{}) {
	w.logf(InfoLevel, format, args...)
}

func (w *plainWrapper) Warnf(format string, args ...interface{}) {
	w.logf(WarnLevel, format, args...)
}

func (w *plainWrapper) Errorf(format string, args ...interface{}) {
	w.logf(ErrorLevel, format, args...)
}

func (w *plainWrapper) LogWithFields(level LogLevel, message string, fields ...LogField) {
	all := append(append([]LogField{}, w.fields...), fields...)
	w.logger.LogLevelf(plainLevel(level), "%s", message+formatFieldsSuffix(all))
}

func (w *plainWrapper) WithUnit(unitID string) StructuredLogger {
	return w.WithFields(Unit(unitID))
}

func (w *plainWrapper) WithFields(fields ...LogField) StructuredLogger {
	next := append(append([]LogField{}, w.fields...), fields...)
	return &plainWrapper{logger: w.logger, fields: next}
}

func (w *plainWrapper) WithError(err error) StructuredLogger {
	return w.WithFields(Error(err))
}

func (w *plainWrapper) Sync() error {
	return nil
}

func plainLevel(level LogLevel) int {
	switch level {
	case DebugLevel:
		return logging.LogLevelDebug
	case WarnLevel:
		return logging.LogLevelWarn
	case ErrorLevel:
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

func formatFieldsSuffix(fields []LogField) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, ", %s: %v", field.Key, field.Value)
	}
	return b.String()
}
