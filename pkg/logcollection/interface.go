package logcollection

import (
	"context"
	"io"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
)

// LogLevel is the backend-agnostic severity scale.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// StreamType identifies which process stream a line arrived on.
type StreamType string

const (
	StdoutStream StreamType = "stdout"
	StderrStream StreamType = "stderr"
)

// StructuredLogger is the structured logging surface. Callers work with
// LogField values only; the backend (zap) never leaks through.
type StructuredLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	LogWithFields(level LogLevel, message string, fields ...LogField)

	WithUnit(unitID string) StructuredLogger
	WithFields(fields ...LogField) StructuredLogger
	WithError(err error) StructuredLogger

	Sync() error
}

// LogEntry is one captured line of unit output. Cursors are assigned
// per unit, start at 1, and increase monotonically for the lifetime of
// the unit's buffer; eviction never reuses or rewinds a cursor.
type LogEntry struct {
	Cursor    uint64
	Timestamp time.Time
	UnitID    string
	Stream    StreamType
	Line      string
}

// UnitLogStatus reports collection counters for one unit.
type UnitLogStatus struct {
	UnitID         string
	SessionID      string
	Active         bool
	LinesCollected int64
	BytesCollected int64
	LastLineAt     time.Time
}

// SystemLogStatus aggregates counters across all units.
type SystemLogStatus struct {
	UnitsActive int
	TotalLines  int64
	TotalBytes  int64
}

// LogCollectionService captures unit output into per-unit bounded
// buffers and configured sink targets. Buffered entries are addressable
// by cursor, which backs log streaming over the core API.
type LogCollectionService interface {
	Start(ctx context.Context) error
	Stop() error

	RegisterUnit(unitID string, cfg config.UnitLogConfig) error
	UnregisterUnit(unitID string) error

	// CollectFromStream attaches a reader (typically a process stdout
	// pipe) to the unit's collector. Returns once the read loop is
	// running; the loop ends when the reader is exhausted.
	CollectFromStream(unitID string, stream io.Reader, streamType StreamType) error

	// ReadLogs returns buffered entries with cursors greater than
	// sinceCursor, at most max, plus the cursor to resume from. A
	// sinceCursor older than the retained window is clamped to the
	// oldest available entry.
	ReadLogs(unitID string, sinceCursor uint64, max int) ([]LogEntry, uint64, error)

	// Subscribe returns a channel that receives a notification after
	// each append to the unit's buffer. The channel is closed when the
	// unit is unregistered or the service stops. The returned func
	// cancels the subscription.
	Subscribe(unitID string) (<-chan struct{}, func(), error)

	GetUnitStatus(unitID string) (*UnitLogStatus, error)
	GetSystemStatus() SystemLogStatus
}
