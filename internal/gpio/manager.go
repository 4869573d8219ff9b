// internal/gpio/manager.go

// Package gpio reads the trigger input and drives the indicator and heating
// outputs through sysfs-style value files.
package gpio

import (
	"fmt"
	"os"
	"time"

	"github.com/AlverezYari/skyframe/internal/config"
	"github.com/AlverezYari/skyframe/internal/messages"
	"go.uber.org/zap"
)

// TickPeriod is how often outputs advance and the trigger is sampled.
const TickPeriod = 20 * time.Millisecond

type Manager struct {
	logger *zap.Logger
	emit   func(messages.StateMessage) error

	triggerPath  string
	exposurePath string
	lastTrigger  *bool

	heatingPwm *ProgrammableOutput
	mainStatus *ProgrammableOutput

	// output path -> already warned
	warned map[string]bool
}

func NewManager(cfg config.IoConfig, emit func(messages.StateMessage) error, logger *zap.Logger) *Manager {
	mainStatus := NewProgrammableOutput(cfg.MainStatus)
	mainStatus.SetPattern(StatusHealthy())

	return &Manager{
		logger:       logger,
		emit:         emit,
		triggerPath:  cfg.TriggerInput,
		exposurePath: cfg.ExposureStatus,
		heatingPwm:   NewProgrammableOutput(cfg.HeatingPwm),
		mainStatus:   mainStatus,
		warned:       make(map[string]bool),
	}
}

func (m *Manager) Process(msg messages.IoMessage) error {
	switch msg.Type {
	case messages.IoSetHeating:
		m.heatingPwm.SetPattern(PatternPwm(msg.Heating))
	case messages.IoSetExposureActive:
		if m.exposurePath != "" {
			m.checkWrite(m.exposurePath, WriteOutput(m.exposurePath, msg.Active))
		}
	case messages.IoSetStatus:
		switch msg.Status {
		case messages.StatusError:
			m.mainStatus.SetPattern(StatusError())
		case messages.StatusOff:
			m.mainStatus.SetPattern(StatusOff())
		default:
			m.mainStatus.SetPattern(StatusHealthy())
		}
	default:
		return fmt.Errorf("unknown io message %q", msg.Type)
	}
	return nil
}

func (m *Manager) Periodic() error {
	m.checkWrite("heating_pwm", m.heatingPwm.Iterate())
	m.checkWrite("main_status", m.mainStatus.Iterate())

	value, ok := m.readTrigger()
	if !ok {
		return nil
	}
	if m.lastTrigger != nil && *m.lastTrigger == value {
		return nil
	}
	m.lastTrigger = &value
	return m.emit(messages.NewTriggerValueChanged(value))
}

// readTrigger maps '0' to true and '1' to false; the input is active low.
func (m *Manager) readTrigger() (bool, bool) {
	if m.triggerPath == "" {
		return false, false
	}
	data, err := os.ReadFile(m.triggerPath)
	if err != nil {
		if !m.warned[m.triggerPath] {
			m.logger.Warn("cannot read trigger input", zap.String("path", m.triggerPath), zap.Error(err))
			m.warned[m.triggerPath] = true
		}
		return false, false
	}
	if len(data) == 0 {
		return false, false
	}
	switch data[0] {
	case '0':
		return true, true
	case '1':
		return false, true
	default:
		m.logger.Debug("invalid trigger value", zap.String("value", string(data[0])))
		return false, false
	}
}

// checkWrite warns on the first failure of each output, then drops to debug.
func (m *Manager) checkWrite(label string, err error) {
	if err == nil {
		return
	}
	if m.warned[label] {
		m.logger.Debug("output write failed", zap.String("output", label), zap.Error(err))
		return
	}
	m.warned[label] = true
	m.logger.Warn("output write failed", zap.String("output", label), zap.Error(err))
}
