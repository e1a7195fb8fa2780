package logging

const (
	LogLevelDebug = 0
	LogLevelInfo  = 1
	LogLevelWarn  = 2
	LogLevelError = 3
)

// Logger is the narrow logging surface library packages depend on.
// Backends (std log, zap) are plugged in through LogFuncs at the edges.
type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type LogLevelFunc func(level int, format string, args ...interface{})
type LogFunc func(format string, args ...interface{})

type LogFuncs struct {
	LogLevelf LogLevelFunc
	Debugf    LogFunc
	Infof     LogFunc
	Warnf     LogFunc
	Errorf    LogFunc
}

type logger struct {
	prefix string
	funcs  LogFuncs
}

func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &logger{
		prefix: prefix,
		funcs:  funcs,
	}
}

// Prefixed derives a logger that prepends an additional prefix,
// e.g. per-unit loggers hanging off a module logger.
func Prefixed(base Logger, prefix string) Logger {
	return &prefixedLogger{base: base, prefix: prefix}
}

// NewNullLogger returns a logger that discards everything.
// Used where a nil logger would otherwise need checking on every call.
func NewNullLogger() Logger {
	return &logger{}
}

func (l *logger) logf(level int, msg string, args ...interface{}) {
	if l.prefix != "" {
		msg = l.prefix + msg
	}
	if l.funcs.LogLevelf != nil {
		l.funcs.LogLevelf(level, msg, args...)
		return
	}
	switch level {
	case LogLevelDebug:
		if l.funcs.Debugf != nil {
			l.funcs.Debugf(msg, args...)
		}
	case LogLevelInfo:
		if l.funcs.Infof != nil {
			l.funcs.Infof(msg, args...)
		}
	case LogLevelWarn:
		if l.funcs.Warnf != nil {
			l.funcs.Warnf(msg, args...)
		}
	case LogLevelError:
		if l.funcs.Errorf != nil {
			l.funcs.Errorf(msg, args...)
		}
	}
}

func (l *logger) LogLevelf(level int, format string, args ...interface{}) {
	l.logf(level, format, args...)
}

func (l *logger) Debugf(msg string, args ...interface{}) {
	l.logf(LogLevelDebug, msg, args...)
}

func (l *logger) Infof(msg string, args ...interface{}) {
	l.logf(LogLevelInfo, msg, args...)
}

func (l *logger) Warnf(msg string, args ...interface{}) {
	l.logf(LogLevelWarn, msg, args...)
}

func (l *logger) Errorf(msg string, args ...interface{}) {
	l.logf(LogLevelError, msg, args...)
}

type prefixedLogger struct {
	base   Logger
	prefix string
}

func (l *prefixedLogger) LogLevelf(level int, format string, args ...interface{}) {
	l.base.LogLevelf(level, l.prefix+format, args...)
}

func (l *prefixedLogger) Debugf(msg string, args ...interface{}) {
	l.base.Debugf(l.prefix+msg, args...)
}

func (l *prefixedLogger) Infof(msg string, args ...interface{}) {
	l.base.Infof(l.prefix+msg, args...)
}

func (l *prefixedLogger) Warnf(msg string, args ...interface{}) {
	l.base.Warnf(l.prefix+msg, args...)
}

func (l *prefixedLogger) Errorf(msg string, args ...interface{}) {
	l.base.Errorf(l.prefix+msg, args...)
}
