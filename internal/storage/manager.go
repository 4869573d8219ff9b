// internal/storage/manager.go

// Package storage persists captured frames and tracks free disk space.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlverezYari/skyframe/internal/config"
	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"go.uber.org/zap"
)

const (
	TickPeriod = time.Second

	// LogCapacity bounds the activity log; the oldest record is evicted first.
	LogCapacity = 20
)

type Manager struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	emit    func(messages.StateMessage) error
	writer  FrameWriter
	usage   DiskUsageFunc

	base      string
	directory string
	counter   int
	enabled   bool
	log       []messages.StorageLogRecord
	state     messages.StorageState
}

func NewManager(cfg config.StorageConfig, writer FrameWriter, emit func(messages.StateMessage) error, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		logger:    logger,
		metrics:   m,
		emit:      emit,
		writer:    writer,
		usage:     RunDf,
		base:      cfg.BasePath,
		directory: cfg.Directory,
		log:       make([]messages.StorageLogRecord, 0, LogCapacity),
		state:     messages.StorageState{State: messages.StorageUnknown},
	}
}

// SetDiskUsage replaces the df runner.
func (m *Manager) SetDiskUsage(fn DiskUsageFunc) {
	m.usage = fn
}

// Process handles one command and acknowledges it with the updated detail.
func (m *Manager) Process(msg messages.StorageMessage) error {
	if msg.Dropped > 0 {
		m.addLog(messages.StorageLogRecord{
			Name:    "dropped",
			Outcome: messages.OutcomeError,
			Reason:  fmt.Sprintf("%d frame(s) dropped, storage busy", msg.Dropped),
		})
	}
	switch msg.Type {
	case messages.EnableStore:
		m.enabled = true
	case messages.DisableStore:
		m.enabled = false
	case messages.SetDirectory:
		m.directory = msg.Directory
		m.counter = 0
	case messages.ProcessImage:
		if msg.Frame == nil {
			return fmt.Errorf("process_image without frame")
		}
		m.store(msg.Frame)
	default:
		return fmt.Errorf("unknown storage message %q", msg.Type)
	}
	return m.emit(messages.NewStorageDetail(m.Detail()))
}

// Periodic re-reads free space and reports it only when it changed.
func (m *Manager) Periodic() error {
	state := m.readState()
	if state == m.state {
		return nil
	}
	m.state = state
	if state.State == messages.StorageAvailable {
		m.metrics.Set(metrics.StorageFree, state.FreeGigabytes)
	}
	return m.emit(messages.NewStorageState(state))
}

func (m *Manager) Detail() messages.StorageDetail {
	return messages.StorageDetail{
		Directory: m.directory,
		Counter:   m.counter,
		Log:       append([]messages.StorageLogRecord(nil), m.log...),
		Enabled:   m.enabled,
		State:     m.state,
	}
}

// Path returns the file the next frame is written to.
func (m *Manager) Path() string {
	return filepath.Join(m.base, m.directory, fmt.Sprintf("%05d.fits", m.counter))
}

func (m *Manager) store(raw *frame.RawFrame) {
	path := m.Path()
	name := filepath.Base(path)
	m.counter++

	record := messages.StorageLogRecord{Name: name, Outcome: messages.OutcomeSuccess}
	if err := m.writer.Save(raw, path); err != nil {
		m.logger.Warn("frame write failed", zap.String("path", path), zap.Error(err))
		m.metrics.Inc(metrics.FramesFailed)
		record.Outcome = messages.OutcomeError
		record.Reason = err.Error()
	} else {
		m.logger.Debug("frame stored", zap.String("path", path))
		m.metrics.Inc(metrics.FramesStored)
		record.Digest = Digest(raw)
	}
	m.addLog(record)
}

func (m *Manager) addLog(record messages.StorageLogRecord) {
	m.log = append(m.log, record)
	if len(m.log) > LogCapacity {
		m.log = m.log[1:]
	}
}

func (m *Manager) readState() messages.StorageState {
	if err := os.MkdirAll(m.base, 0755); err != nil {
		return messages.StorageStateError(err.Error())
	}
	output, err := m.usage(m.base)
	if err != nil {
		return messages.StorageStateError(err.Error())
	}
	state, err := ParseDiskUsage(output)
	if err != nil {
		return messages.StorageStateError(err.Error())
	}
	return state
}
