package logcollection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
)

// logOutputWriter is a sink for collected entries.
type logOutputWriter interface {
	WriteEntry(entry LogEntry) error
	Close() error
}

func createOutputWriter(target config.OutputTargetConfig, resolvedPath string) (logOutputWriter, error) {
	switch target.Type {
	case config.OutputTypeStdout:
		return &stdoutWriter{format: target.Format}, nil
	case config.OutputTypeFile:
		return newFileWriter(resolvedPath, target)
	default:
		return nil, errors.NewValidationError("unknown log output type", nil).WithContext("type", target.Type)
	}
}

// resolveOutputPath resolves a shared (non-unit) target path. Relative
// file paths land under the application log directory.
func (s *logCollectionService) resolveOutputPath(target config.OutputTargetConfig) string {
	if target.Type != config.OutputTypeFile || filepath.IsAbs(target.Path) {
		return target.Path
	}
	return s.pathManager.GenerateLogFilePath(target.Path)
}

// resolveUnitOutputPath resolves a per-unit target path, substituting
// the {unit_id} placeholder. Relative paths land under the unit log
// directory.
func (s *logCollectionService) resolveUnitOutputPath(target config.OutputTargetConfig, unitID string) string {
	if target.Type != config.OutputTypeFile {
		return target.Path
	}
	if filepath.IsAbs(target.Path) {
		return strings.ReplaceAll(target.Path, "{unit_id}", unitID)
	}
	return s.pathManager.GenerateUnitLogFilePath(target.Path, unitID)
}

type stdoutWriter struct {
	format string
	mutex  sync.Mutex
}

func (w *stdoutWriter) WriteEntry(entry LogEntry) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	_, err := fmt.Fprintln(os.Stdout, formatEntry(entry, w.format))
	return err
}

func (w *stdoutWriter) Close() error {
	return nil
}

// fileWriter appends formatted entries to a lumberjack-rotated file.
type fileWriter struct {
	sink   *lumberjack.Logger
	format string
	mutex  sync.Mutex
}

func newFileWriter(path string, target config.OutputTargetConfig) (*fileWriter, error) {
	if path == "" {
		return nil, errors.NewValidationError("file output requires a path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewIOError("failed to create log directory", err).WithContext("path", path)
	}

	rotation := target.Rotation.WithDefaults()
	return &fileWriter{
		sink: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		},
		format: target.Format,
	}, nil
}

func (w *fileWriter) WriteEntry(entry LogEntry) error {
	line := formatEntry(entry, w.format)

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, err := w.sink.Write([]byte(line + "\n")); err != nil {
		return errors.NewIOError("failed to write log entry", err).WithContext("path", w.sink.Filename)
	}
	return nil
}

func (w *fileWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sink.Close()
}

func formatEntry(entry LogEntry, format string) string {
	switch format {
	case config.OutputFormatJSON:
		encoded, err := json.Marshal(jsonLogLine{
			Cursor:    entry.Cursor,
			Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
			UnitID:    entry.UnitID,
			Stream:    string(entry.Stream),
			Line:      entry.Line,
		})
		if err != nil {
			return entry.Line
		}
		return string(encoded)
	case config.OutputFormatEnhanced:
		return fmt.Sprintf("%s [%s/%s] %s",
			entry.Timestamp.Format(time.RFC3339), entry.UnitID, entry.Stream, entry.Line)
	default:
		return entry.Line
	}
}

type jsonLogLine struct {
	Cursor    uint64 `json:"cursor"`
	Timestamp string `json:"timestamp"`
	UnitID    string `json:"unit_id"`
	Stream    string `json:"stream"`
	Line      string `json:"line"`
}
