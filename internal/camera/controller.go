// internal/camera/controller.go

// Package camera owns the device lifecycle: connecting, periodic property
// reads and exposure sequencing. Everything here runs on the logic actor's
// goroutine.
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/pkg/imager"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("not connected - cannot handle exposure command")

type state int

const (
	stateError state = iota
	stateConnected
)

func (s state) String() string {
	if s == stateConnected {
		return "connected"
	}
	return "error"
}

// Controller is the camera state machine. In the error state every Periodic
// call makes one connection attempt.
type Controller struct {
	driver  imager.Driver
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	state  state
	detail string
	params messages.CameraParams

	device     imager.Device
	properties *PropertiesReader
	sequencer  *Sequencer
}

func NewController(driver imager.Driver, params messages.CameraParams, sink Sink, logger *zap.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		driver:  driver,
		sink:    sink,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		state:   stateError,
		detail:  "Started",
		params:  params,
	}
}

// SetClock replaces the clock used by the properties reader.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Controller) Periodic() {
	old := c.state

	switch c.state {
	case stateError:
		c.state = c.handleError()
	case stateConnected:
		c.state = c.handleConnected()
	}

	if c.state != old {
		c.logger.Info("camera state changed",
			zap.Stringer("from", old),
			zap.Stringer("to", c.state))
		c.metrics.SetBool(metrics.CameraConnected, c.state == stateConnected)
	}
}

// StartExposure starts a single exposure with the current params. A device
// refusal is treated as a fault and the device is reopened on the next tick.
func (c *Controller) StartExposure() error {
	if c.state != stateConnected {
		c.setDetail(ErrNotConnected.Error())
		return ErrNotConnected
	}
	err := c.sequencer.Start(c.device)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyInProgress):
		c.setDetail("Exposure already in progress")
	default:
		c.fault(err)
	}
	return err
}

func (c *Controller) UpdateParams(params messages.CameraParams) {
	c.params = params
	if c.sequencer != nil {
		c.sequencer.UpdateParams(params)
	}
}

// Trigger passes a trigger reading to the sequencer. Edges are ignored
// while no camera is connected, and every new connection starts unarmed, so
// a gated loop waits for an edge seen after the camera came up.
func (c *Controller) Trigger(value bool) {
	if c.state != stateConnected || c.sequencer == nil {
		return
	}
	c.sequencer.Trigger(value)
}

// Reconnect drops the current device; it is reopened on the next tick.
func (c *Controller) Reconnect() {
	if c.state == stateConnected {
		c.setDetail("Reconnect requested")
		c.state = stateError
		c.metrics.SetBool(metrics.CameraConnected, false)
	}
}

func (c *Controller) Close() {
	c.teardown()
	c.state = stateError
}

func (c *Controller) Detail() string {
	return c.detail
}

func (c *Controller) ConnectionState() messages.ConnectionState {
	if c.state == stateConnected {
		return messages.Established
	}
	return messages.Connecting
}

func (c *Controller) ExposureState() messages.ConnectionState {
	switch {
	case c.state != stateConnected:
		return messages.Disconnected
	case c.sequencer.InProgress():
		return messages.Established
	case c.sequencer.WaitingForTrigger():
		return messages.Connecting
	default:
		return messages.Disconnected
	}
}

// Properties returns the cached device properties, nil when not connected.
func (c *Controller) Properties() *imager.Properties {
	if c.state != stateConnected {
		return nil
	}
	properties := c.properties.Properties()
	return &properties
}

func (c *Controller) handleError() state {
	if c.device != nil {
		c.teardown()
		c.setDetail("Closing old device")
	}

	devices, err := c.driver.ListDevices()
	if err != nil {
		c.setDetail("Could not list devices")
		c.logger.Debug("list devices failed", zap.Error(err))
		return stateError
	}
	if len(devices) == 0 {
		c.setDetail("No devices present in list")
		return stateError
	}
	return c.connect(devices[0])
}

func (c *Controller) connect(descriptor imager.DeviceDescriptor) state {
	device, err := c.driver.ConnectDevice(descriptor)
	if err != nil {
		c.setDetail("Connect device failed")
		c.logger.Debug("connect failed", zap.String("device", descriptor.Name), zap.Error(err))
		return stateError
	}

	properties, err := NewPropertiesReader(device, c.now)
	if err != nil {
		device.Close()
		c.setDetail(fmt.Sprintf("Init failed: %v", err))
		return stateError
	}

	c.device = device
	c.properties = properties
	c.sequencer = NewSequencer(properties.Properties().Basic, c.params, c.sink, c.logger, c.metrics)
	c.setDetail("Camera initialized")
	return stateConnected
}

func (c *Controller) handleConnected() state {
	if err := c.sequencer.Periodic(c.device); err != nil {
		c.fault(err)
		return stateError
	}
	if err := c.properties.Read(c.device); err != nil {
		c.fault(err)
		return stateError
	}
	return stateConnected
}

// fault marks the device broken. It is closed by the next error-state tick.
func (c *Controller) fault(err error) {
	c.setDetail(fmt.Sprintf("Periodic task failed: %v", err))
	c.state = stateError
	c.metrics.SetBool(metrics.CameraConnected, false)
}

func (c *Controller) teardown() {
	if c.sequencer != nil {
		c.sequencer.abort()
		c.sequencer = nil
	}
	if c.device != nil {
		c.device.Close()
		c.device = nil
	}
	c.properties = nil
}

func (c *Controller) setDetail(detail string) {
	if detail != c.detail {
		c.logger.Info("detail updated", zap.String("detail", detail))
	}
	c.detail = detail
}
