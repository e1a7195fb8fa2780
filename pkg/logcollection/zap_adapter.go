package logcollection

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
)

// ZapAdapter backs StructuredLogger with go.uber.org/zap.
type ZapAdapter struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// ZapConfig configures the zap backend.
type ZapConfig struct {
	Level      LogLevel
	Format     string // "json" or "console"
	Output     string // "stdout", "stderr", or a file path
	Rotation   config.RotationConfig
	Caller     bool
	Stacktrace bool
}

// DefaultZapConfig returns JSON-to-stdout defaults.
func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Level:  InfoLevel,
		Format: "json",
		Output: "stdout",
	}
}

// NewZapAdapter creates a zap-backed structured logger.
func NewZapAdapter(cfg ZapConfig) (*ZapAdapter, error) {
	logger, err := createZapLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return &ZapAdapter{
		logger: logger,
		sugar:  logger.Sugar(),
	}, nil
}

func createZapLogger(cfg ZapConfig) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "stdout", "":
		sink = zapcore.Lock(os.Stdout)
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		// File output rotates via lumberjack.
		rotation := cfg.Rotation.WithDefaults()
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		})
	}

	core := zapcore.NewCore(encoder, sink, zapLevel(cfg.Level))

	var options []zap.Option
	if cfg.Caller {
		options = append(options, zap.AddCaller())
	}
	if cfg.Stacktrace {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, options...), nil
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapAdapter) Debugf(format string, args ...interface{}) {
	z.sugar.Debugf(format, args...)
}

func (z *ZapAdapter) Infof(format string, args ...interface{}) {
	z.sugar.Infof(format, args...)
}

func (z *ZapAdapter) Warnf(format string, args ...interface{}) {
	z.sugar.Warnf(format, args...)
}

func (z *ZapAdapter) Errorf(format string, args ...interface{}) {
	z.sugar.Errorf(format, args...)
}

func (z *ZapAdapter) LogWithFields(level LogLevel, message string, fields ...LogField) {
	zapFields := convertFields(fields)
	switch level {
	case DebugLevel:
		z.logger.Debug(message, zapFields...)
	case InfoLevel:
		z.logger.Info(message, zapFields...)
	case WarnLevel:
		z.logger.Warn(message, zapFields...)
	case ErrorLevel:
		z.logger.Error(message, zapFields...)
	}
}

func (z *ZapAdapter) WithUnit(unitID string) StructuredLogger {
	return z.WithFields(Unit(unitID))
}

func (z *ZapAdapter) WithFields(fields ...LogField) StructuredLogger {
	logger := z.logger.With(convertFields(fields)...)
	return &ZapAdapter{
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

func (z *ZapAdapter) WithError(err error) StructuredLogger {
	return z.WithFields(Error(err))
}

func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

func convertFields(fields []LogField) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		zapFields = append(zapFields, convertSingleField(field))
	}
	return zapFields
}

func convertSingleField(field LogField) zap.Field {
	switch field.Type {
	case StringField:
		if v, ok := field.Value.(string); ok {
			return zap.String(field.Key, v)
		}
	case IntField:
		if v, ok := field.Value.(int); ok {
			return zap.Int(field.Key, v)
		}
	case Int64Field:
		if v, ok := field.Value.(int64); ok {
			return zap.Int64(field.Key, v)
		}
	case Float64Field:
		if v, ok := field.Value.(float64); ok {
			return zap.Float64(field.Key, v)
		}
	case BoolField:
		if v, ok := field.Value.(bool); ok {
			return zap.Bool(field.Key, v)
		}
	case DurationField:
		if v, ok := field.Value.(time.Duration); ok {
			return zap.Duration(field.Key, v)
		}
	case TimeField:
		if v, ok := field.Value.(time.Time); ok {
			return zap.Time(field.Key, v)
		}
	case ErrorField:
		if v, ok := field.Value.(error); ok {
			return zap.NamedError(field.Key, v)
		}
	}
	return zap.Any(field.Key, field.Value)
}
