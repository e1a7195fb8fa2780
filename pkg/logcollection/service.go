package logcollection

import (
	"bufio"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"
)

const (
	initialScanBuffer = 64 * 1024
	maxLineBytes      = 1024 * 1024
)

type logCollectionService struct {
	config      config.LogCollectionConfig
	logger      StructuredLogger
	pathManager *processfile.ProcessFileManager

	running int32

	ctx    context.Context
	cancel context.CancelFunc

	mutex      sync.RWMutex
	collectors map[string]*unitLogCollector

	globalMutex   sync.Mutex
	globalOutputs []logOutputWriter

	totalLines int64
	totalBytes int64
}

// NewLogCollectionService creates a collection service with log paths
// resolved for the default user-service context.
func NewLogCollectionService(cfg config.LogCollectionConfig, logger StructuredLogger) LogCollectionService {
	return NewLogCollectionServiceWithPathManager(cfg, logger, nil)
}

// NewLogCollectionServiceWithPathManager creates a collection service
// resolving relative sink paths through the given path manager.
func NewLogCollectionServiceWithPathManager(cfg config.LogCollectionConfig, logger StructuredLogger, pathManager *processfile.ProcessFileManager) LogCollectionService {
	if pathManager == nil {
		pathConfig := processfile.GetRecommendedProcessFileConfig("user", processfile.DefaultAppName)
		pathManager = processfile.NewProcessFileManager(pathConfig, NewLoggerAdapter(logger))
	}
	return &logCollectionService{
		config:      cfg,
		logger:      logger,
		pathManager: pathManager,
		collectors:  make(map[string]*unitLogCollector),
	}
}

func (s *logCollectionService) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return errors.NewValidationError("log collection service already running", nil)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	globalTargets := 0
	if s.config.GlobalAggregation.Enabled {
		s.globalMutex.Lock()
		for _, target := range s.config.GlobalAggregation.Targets {
			writer, err := createOutputWriter(target, s.resolveOutputPath(target))
			if err != nil {
				s.logger.LogWithFields(WarnLevel, "Skipping global aggregation target",
					String("type", target.Type), String("path", target.Path), Error(err))
				continue
			}
			s.globalOutputs = append(s.globalOutputs, writer)
		}
		globalTargets = len(s.globalOutputs)
		s.globalMutex.Unlock()
	}

	s.logger.LogWithFields(InfoLevel, "Log collection service started",
		Int("global_targets", globalTargets))
	return nil
}

func (s *logCollectionService) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil
	}

	s.cancel()

	s.mutex.Lock()
	collectors := make([]*unitLogCollector, 0, len(s.collectors))
	for _, collector := range s.collectors {
		collectors = append(collectors, collector)
	}
	s.collectors = make(map[string]*unitLogCollector)
	s.mutex.Unlock()

	for _, collector := range collectors {
		collector.stop()
	}

	s.globalMutex.Lock()
	for _, writer := range s.globalOutputs {
		writer.Close()
	}
	s.globalOutputs = nil
	s.globalMutex.Unlock()

	s.logger.LogWithFields(InfoLevel, "Log collection service stopped")
	return nil
}

func (s *logCollectionService) RegisterUnit(unitID string, cfg config.UnitLogConfig) error {
	if unitID == "" {
		return errors.NewValidationError("unit ID cannot be empty", nil)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.collectors[unitID]; exists {
		return errors.NewConflictError("unit already registered for log collection", nil).WithContext("unit_id", unitID)
	}
	if s.config.System.MaxUnits > 0 && len(s.collectors) >= s.config.System.MaxUnits {
		return errors.NewValidationError("log collection unit limit reached", nil).
			WithContext("unit_id", unitID).
			WithContext("max_units", s.config.System.MaxUnits)
	}

	collector := newUnitLogCollector(s, unitID, cfg)
	if err := collector.openOutputs(); err != nil {
		return err
	}
	s.collectors[unitID] = collector

	s.logger.LogWithFields(InfoLevel, "Registered unit for log collection",
		Unit(unitID),
		String("session_id", collector.sessionID),
		Int("buffer_lines", collector.buffer.capacity),
		Int("outputs", len(collector.outputs)))
	return nil
}

func (s *logCollectionService) UnregisterUnit(unitID string) error {
	s.mutex.Lock()
	collector, exists := s.collectors[unitID]
	delete(s.collectors, unitID)
	s.mutex.Unlock()

	if !exists {
		return errors.NewNotFoundError("unit not registered for log collection", nil).WithContext("unit_id", unitID)
	}

	collector.stop()

	s.logger.LogWithFields(InfoLevel, "Unregistered unit from log collection", Unit(unitID))
	return nil
}

func (s *logCollectionService) CollectFromStream(unitID string, stream io.Reader, streamType StreamType) error {
	if atomic.LoadInt32(&s.running) == 0 {
		return errors.NewValidationError("log collection service not running", nil)
	}

	collector, err := s.collector(unitID)
	if err != nil {
		return err
	}
	return collector.collectFrom(stream, streamType)
}

func (s *logCollectionService) ReadLogs(unitID string, sinceCursor uint64, max int) ([]LogEntry, uint64, error) {
	collector, err := s.collector(unitID)
	if err != nil {
		return nil, sinceCursor, err
	}
	entries, next := collector.buffer.ReadSince(sinceCursor, max)
	return entries, next, nil
}

func (s *logCollectionService) Subscribe(unitID string) (<-chan struct{}, func(), error) {
	collector, err := s.collector(unitID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := collector.buffer.Subscribe()
	return ch, cancel, nil
}

func (s *logCollectionService) GetUnitStatus(unitID string) (*UnitLogStatus, error) {
	collector, err := s.collector(unitID)
	if err != nil {
		return nil, err
	}
	return collector.status(), nil
}

func (s *logCollectionService) GetSystemStatus() SystemLogStatus {
	s.mutex.RLock()
	active := len(s.collectors)
	s.mutex.RUnlock()

	return SystemLogStatus{
		UnitsActive: active,
		TotalLines:  atomic.LoadInt64(&s.totalLines),
		TotalBytes:  atomic.LoadInt64(&s.totalBytes),
	}
}

func (s *logCollectionService) collector(unitID string) (*unitLogCollector, error) {
	s.mutex.RLock()
	collector, exists := s.collectors[unitID]
	s.mutex.RUnlock()

	if !exists {
		return nil, errors.NewNotFoundError("unit not registered for log collection", nil).WithContext("unit_id", unitID)
	}
	return collector, nil
}

func (s *logCollectionService) writeGlobal(entry LogEntry) {
	s.globalMutex.Lock()
	defer s.globalMutex.Unlock()

	for _, writer := range s.globalOutputs {
		if err := writer.WriteEntry(entry); err != nil {
			s.logger.LogWithFields(DebugLevel, "Global aggregation write failed",
				Unit(entry.UnitID), Error(err))
		}
	}
}

// unitLogCollector owns one unit's ring buffer and sink writers. Each
// registration gets a session ID stamped into collection logs.
type unitLogCollector struct {
	service   *logCollectionService
	unitID    string
	config    config.UnitLogConfig
	sessionID string

	buffer *ringBuffer

	mutex   sync.Mutex
	outputs []logOutputWriter

	stopOnce sync.Once
	stopped  chan struct{}

	lines      int64
	bytes      int64
	lastLineMu sync.Mutex
	lastLineAt time.Time
}

func newUnitLogCollector(service *logCollectionService, unitID string, cfg config.UnitLogConfig) *unitLogCollector {
	bufferLines := cfg.BufferLines
	if bufferLines <= 0 {
		bufferLines = config.DefaultBufferLines
	}
	return &unitLogCollector{
		service:   service,
		unitID:    unitID,
		config:    cfg,
		sessionID: uuid.New().String(),
		buffer:    newRingBuffer(bufferLines),
		stopped:   make(chan struct{}),
	}
}

func (c *unitLogCollector) openOutputs() error {
	for _, target := range c.config.Outputs {
		writer, err := createOutputWriter(target, c.service.resolveUnitOutputPath(target, c.unitID))
		if err != nil {
			c.closeOutputs()
			return err
		}
		c.outputs = append(c.outputs, writer)
	}
	return nil
}

func (c *unitLogCollector) closeOutputs() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, writer := range c.outputs {
		writer.Close()
	}
	c.outputs = nil
}

func (c *unitLogCollector) collectFrom(stream io.Reader, streamType StreamType) error {
	switch streamType {
	case StdoutStream:
		if !c.config.CaptureStdout {
			return nil
		}
	case StderrStream:
		if !c.config.CaptureStderr {
			return nil
		}
	default:
		return errors.NewValidationError("unknown stream type", nil).WithContext("stream", string(streamType))
	}

	c.service.logger.LogWithFields(DebugLevel, "Starting log collection from stream",
		Unit(c.unitID), Stream(streamType), String("session_id", c.sessionID))

	go c.readLoop(stream, streamType)
	return nil
}

// readLoop drains the stream line by line. It ends when the reader is
// exhausted, which for process pipes happens when the process exits.
func (c *unitLogCollector) readLoop(stream io.Reader, streamType StreamType) {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, initialScanBuffer), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-c.stopped:
			return
		default:
		}
		c.ingestLine(scanner.Text(), streamType)
	}

	if err := scanner.Err(); err != nil {
		c.service.logger.LogWithFields(DebugLevel, "Unit output stream closed with error",
			Unit(c.unitID), Stream(streamType), Error(err))
	}
}

func (c *unitLogCollector) ingestLine(line string, streamType StreamType) {
	entry := LogEntry{
		Timestamp: time.Now(),
		UnitID:    c.unitID,
		Stream:    streamType,
		Line:      line,
	}
	entry.Cursor = c.buffer.Append(entry)

	size := int64(len(line)) + 1
	atomic.AddInt64(&c.lines, 1)
	atomic.AddInt64(&c.bytes, size)
	atomic.AddInt64(&c.service.totalLines, 1)
	atomic.AddInt64(&c.service.totalBytes, size)

	c.lastLineMu.Lock()
	c.lastLineAt = entry.Timestamp
	c.lastLineMu.Unlock()

	c.mutex.Lock()
	for _, writer := range c.outputs {
		if err := writer.WriteEntry(entry); err != nil {
			c.service.logger.LogWithFields(DebugLevel, "Unit log sink write failed",
				Unit(c.unitID), Error(err))
		}
	}
	c.mutex.Unlock()

	c.service.writeGlobal(entry)
}

// stop halts ingestion and tears the buffer down, which closes every
// subscriber channel. The read loops exit on their own when the process
// side of the pipe closes.
func (c *unitLogCollector) stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		c.buffer.Close()
	})
	c.closeOutputs()
}

func (c *unitLogCollector) status() *UnitLogStatus {
	c.lastLineMu.Lock()
	lastLineAt := c.lastLineAt
	c.lastLineMu.Unlock()

	active := true
	select {
	case <-c.stopped:
		active = false
	default:
	}

	return &UnitLogStatus{
		UnitID:         c.unitID,
		SessionID:      c.sessionID,
		Active:         active,
		LinesCollected: atomic.LoadInt64(&c.lines),
		BytesCollected: atomic.LoadInt64(&c.bytes),
		LastLineAt:     lastLineAt,
	}
}
