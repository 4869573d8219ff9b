// internal/camera/exposure.go
package camera

import (
	"errors"
	"fmt"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/AlverezYari/skyframe/pkg/imager"
	"go.uber.org/zap"
)

var ErrAlreadyInProgress = errors.New("exposure already in progress")

// Sink receives everything the sequencer produces.
type Sink interface {
	FrameCaptured(raw *frame.RawFrame)
	ExposureActive(active bool)
	HeatingChanged(duty float64)
}

// Sequencer runs at most one exposure at a time on a connected device.
type Sequencer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	sink    Sink

	chip     imager.BasicProperties
	params   messages.CameraParams
	inFlight *imager.ExposureParams

	// a trigger edge arms one looped start
	triggerArmed bool

	// last values pushed; nil until the first push
	temperature *float64
	heating     *float64
}

func NewSequencer(chip imager.BasicProperties, params messages.CameraParams, sink Sink, logger *zap.Logger, m *metrics.Metrics) *Sequencer {
	return &Sequencer{
		logger:  logger,
		metrics: m,
		sink:    sink,
		chip:    chip,
		params:  params,
	}
}

// UpdateParams replaces the shooting params. Turning trigger gating on
// discards an arm left from before, so the first gated start needs a fresh
// edge.
func (s *Sequencer) UpdateParams(params messages.CameraParams) {
	if !s.gated() && gated(params) {
		s.triggerArmed = false
	}
	s.params = params
}

// Trigger records an external trigger reading. A true value arms one looped
// start, and only while gating is on.
func (s *Sequencer) Trigger(value bool) {
	if value && s.gated() {
		s.triggerArmed = true
	}
}

func (s *Sequencer) gated() bool {
	return gated(s.params)
}

func gated(params messages.CameraParams) bool {
	return params.LoopEnabled && params.TriggerRequired
}

func (s *Sequencer) InProgress() bool {
	return s.inFlight != nil
}

// WaitingForTrigger reports a looped sequence held back by trigger gating.
func (s *Sequencer) WaitingForTrigger() bool {
	return s.inFlight == nil && s.gated() && !s.triggerArmed
}

// Start begins an exposure with the current params over the full chip.
func (s *Sequencer) Start(device imager.Device) error {
	return s.StartWith(device, s.exposureParams())
}

// StartWith begins an exposure unless one is already in flight. The params
// are recorded only after the device accepts them.
func (s *Sequencer) StartWith(device imager.Device, params imager.ExposureParams) error {
	if s.inFlight != nil {
		return ErrAlreadyInProgress
	}
	if err := device.StartExposure(params); err != nil {
		s.metrics.Inc(metrics.ExposuresFailed)
		return fmt.Errorf("start exposure: %w", err)
	}

	s.inFlight = &params
	s.metrics.Inc(metrics.ExposuresStarted)
	s.logger.Debug("exposure started",
		zap.Uint16("gain", params.Gain),
		zap.Float64("time", params.Time),
		zap.Int("width", params.Area.Width),
		zap.Int("height", params.Area.Height))
	s.sink.ExposureActive(true)
	return nil
}

// Periodic pushes changed setpoints, completes a finished exposure and
// starts the next looped one.
func (s *Sequencer) Periodic(device imager.Device) error {
	if err := s.pushSetpoints(device); err != nil {
		return err
	}

	if s.inFlight != nil {
		ready, err := device.ImageReady()
		if err != nil {
			s.abort()
			return fmt.Errorf("poll exposure: %w", err)
		}
		if !ready {
			return nil
		}
		return s.download(device)
	}

	if !s.params.LoopEnabled {
		return nil
	}
	if s.params.TriggerRequired && !s.triggerArmed {
		return nil
	}
	s.triggerArmed = false
	return s.Start(device)
}

// abort drops the in-flight exposure without downloading it.
func (s *Sequencer) abort() {
	if s.inFlight == nil {
		return
	}
	s.inFlight = nil
	s.metrics.Inc(metrics.ExposuresFailed)
	s.sink.ExposureActive(false)
}

func (s *Sequencer) download(device imager.Device) error {
	params := *s.inFlight
	s.inFlight = nil
	s.sink.ExposureActive(false)

	data, err := device.DownloadImage(params)
	if err != nil {
		s.metrics.Inc(metrics.ExposuresFailed)
		return fmt.Errorf("download image: %w", err)
	}
	raw, err := frame.NewRawFrame(params, data)
	if err != nil {
		s.metrics.Inc(metrics.ExposuresFailed)
		return fmt.Errorf("download image: %w", err)
	}

	s.metrics.Inc(metrics.ExposuresCompleted)
	s.sink.FrameCaptured(raw)
	return nil
}

func (s *Sequencer) pushSetpoints(device imager.Device) error {
	if s.temperature == nil || *s.temperature != s.params.Temperature {
		if err := device.SetTemperature(s.params.Temperature); err != nil {
			return fmt.Errorf("set temperature: %w", err)
		}
		t := s.params.Temperature
		s.temperature = &t
	}

	if s.heating == nil || *s.heating != s.params.HeatingPwm {
		h := s.params.HeatingPwm
		s.heating = &h
		s.sink.HeatingChanged(h)
	}
	return nil
}

func (s *Sequencer) exposureParams() imager.ExposureParams {
	return imager.ExposureParams{
		Gain: s.params.Gain,
		Time: s.params.Time,
		Area: s.chip.FullChip(),
	}
}
