// internal/logic/logic.go

// Package logic is the central orchestrator. It owns the camera state
// machine and the shooting parameters, dispatches inbound commands and
// publishes view snapshots to clients.
package logic

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/AlverezYari/skyframe/internal/actor"
	"github.com/AlverezYari/skyframe/internal/camera"
	"github.com/AlverezYari/skyframe/internal/logging"
	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/AlverezYari/skyframe/pkg/imager"
	"go.uber.org/zap"
)

const (
	TickPeriod = 50 * time.Millisecond

	// maxStoragePending bounds storage commands waiting for room on the
	// storage queue.
	maxStoragePending = 16
)

// Outputs are the logic actor's downstream links. It is the only sender on
// each of them. Process and Storage must not block: they return
// actor.ErrFull when the receiver is behind.
type Outputs struct {
	Client  func(messages.ClientMessage) error
	Process func(messages.ProcessMessage) error
	Storage func(messages.StorageMessage) error
	Io      func(messages.IoMessage) error
}

type Logic struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	out     Outputs
	camera  *camera.Controller

	params         messages.CameraParams
	storage        messages.StorageDetail
	storageEnabled bool
	// storage commands not yet accepted, and frames dropped since the last
	// delivered storage message
	storagePending []messages.StorageMessage
	storageDropped int
	trigger        *bool
	status         messages.StatusMode

	detail       string
	cameraDetail string

	lastImage *frame.RgbImage
	lastView  *messages.ViewState
}

func New(driver imager.Driver, params messages.CameraParams, storage messages.StorageDetail, out Outputs, logger *zap.Logger, m *metrics.Metrics) *Logic {
	l := &Logic{
		logger:         logger,
		metrics:        m,
		out:            out,
		params:         params,
		storage:        storage,
		storageEnabled: storage.Enabled,
	}
	l.camera = camera.NewController(driver, params, l, logger.Named("camera"), m)
	return l
}

// Camera exposes the state machine, mainly for tests.
func (l *Logic) Camera() *camera.Controller {
	return l.camera
}

func (l *Logic) Process(msg messages.StateMessage) error {
	switch msg.Type {
	case messages.ClientConnected:
		return l.sendView(true)

	case messages.Reconnect:
		l.camera.Reconnect()

	case messages.Exposure:
		if err := l.camera.StartExposure(); err != nil {
			return fmt.Errorf("exposure: %w", err)
		}

	case messages.CameraParam:
		if msg.CameraParam == nil {
			return fmt.Errorf("camera_param without payload")
		}
		params, err := msg.CameraParam.Apply(l.params)
		if err != nil {
			l.setDetail(err.Error())
			return err
		}
		l.params = params
		l.camera.UpdateParams(params)

	case messages.Storage:
		if msg.Storage == nil {
			return fmt.Errorf("storage without payload")
		}
		return l.storageCommand(*msg.Storage)

	case messages.TriggerValueChanged:
		if msg.Trigger == nil {
			return fmt.Errorf("trigger_value_changed without value")
		}
		value := *msg.Trigger
		l.trigger = &value
		l.camera.Trigger(value)

	case messages.StorageStateChanged:
		if msg.StorageState != nil {
			l.storage.State = *msg.StorageState
		}

	case messages.StorageDetailChanged:
		if msg.StorageDetail != nil {
			l.storage = *msg.StorageDetail
		}

	case messages.FrameProcessed:
		if msg.Image == nil {
			return fmt.Errorf("frame_processed without image")
		}
		l.lastImage = msg.Image
		return l.out.Client(messages.NewRgbImage(msg.Image))

	default:
		return fmt.Errorf("unknown state message %q", msg.Type)
	}
	return nil
}

func (l *Logic) Periodic() error {
	l.camera.Periodic()
	l.flushStorage()

	status := messages.StatusError
	if l.camera.ConnectionState() == messages.Established {
		status = messages.StatusOn
	}
	if status != l.status {
		l.status = status
		logging.LogErr(l.logger, "set status", l.out.Io(messages.IoMessage{Type: messages.IoSetStatus, Status: status}))
	}

	return l.sendView(false)
}

// Close releases the camera. Call after the actor loop has returned.
func (l *Logic) Close() {
	l.camera.Close()
}

// FrameCaptured hands a new frame to the process actor and, when storage is
// enabled, to the storage manager.
func (l *Logic) FrameCaptured(raw *frame.RawFrame) {
	err := l.out.Process(messages.ProcessMessage{
		Frame:     raw,
		Size:      l.params.RenderSize,
		Rendering: l.params.Rendering,
	})
	if errors.Is(err, actor.ErrFull) {
		l.logger.Debug("display conversion busy, frame not rendered")
	} else {
		logging.LogErr(l.logger, "send to process", err)
	}

	if !l.storageEnabled {
		return
	}
	// pending commands go first so a frame never overtakes a directory change
	if !l.flushStorage() || l.sendStorage(messages.StorageMessage{Type: messages.ProcessImage, Frame: raw}) != nil {
		l.storageDropped++
		l.metrics.Inc(metrics.FramesDropped)
		l.logger.Warn("storage busy, frame dropped", zap.Int("dropped", l.storageDropped))
	}
}

func (l *Logic) ExposureActive(active bool) {
	logging.LogErr(l.logger, "set exposure active",
		l.out.Io(messages.IoMessage{Type: messages.IoSetExposureActive, Active: active}))
}

func (l *Logic) HeatingChanged(duty float64) {
	logging.LogErr(l.logger, "set heating",
		l.out.Io(messages.IoMessage{Type: messages.IoSetHeating, Heating: duty}))
}

func (l *Logic) storageCommand(cmd messages.StorageCommand) error {
	var msg messages.StorageMessage
	switch cmd.Type {
	case messages.StorageEnable:
		msg = messages.StorageMessage{Type: messages.EnableStore}
	case messages.StorageDisable:
		msg = messages.StorageMessage{Type: messages.DisableStore}
	case messages.StorageSetDirectory:
		if cmd.Directory == "" {
			l.setDetail("Storage directory must not be empty")
			return fmt.Errorf("%w: empty storage directory", messages.ErrInvalidMessage)
		}
		msg = messages.StorageMessage{Type: messages.SetDirectory, Directory: cmd.Directory}
	default:
		return fmt.Errorf("%w: storage command %q", messages.ErrInvalidMessage, cmd.Type)
	}

	if len(l.storagePending) >= maxStoragePending {
		l.setDetail("Storage busy, command dropped")
		return fmt.Errorf("storage command %q: %w", cmd.Type, actor.ErrFull)
	}
	switch cmd.Type {
	case messages.StorageEnable:
		l.storageEnabled = true
	case messages.StorageDisable:
		l.storageEnabled = false
	}
	l.storagePending = append(l.storagePending, msg)
	l.flushStorage()
	return nil
}

// flushStorage delivers queued storage commands in order and reports whether
// none are left.
func (l *Logic) flushStorage() bool {
	for len(l.storagePending) > 0 {
		if err := l.sendStorage(l.storagePending[0]); err != nil {
			if !errors.Is(err, actor.ErrFull) {
				logging.LogErr(l.logger, "send to storage", err)
			}
			return false
		}
		l.storagePending = l.storagePending[1:]
	}
	return true
}

// sendStorage offers msg to the storage manager, carrying the count of frames
// dropped since the last delivery.
func (l *Logic) sendStorage(msg messages.StorageMessage) error {
	msg.Dropped = l.storageDropped
	if err := l.out.Storage(msg); err != nil {
		return err
	}
	l.storageDropped = 0
	return nil
}

// View builds the current snapshot.
func (l *Logic) View() messages.ViewState {
	if d := l.camera.Detail(); d != l.cameraDetail {
		l.cameraDetail = d
		l.detail = d
	}
	return messages.ViewState{
		Detail: l.detail,
		Status: messages.LogicStatus{
			Camera:   l.camera.ConnectionState(),
			Exposure: l.camera.ExposureState(),
			Storage:  l.storageStatus(),
			Trigger:  l.triggerStatus(),
		},
		CameraProperties: l.camera.Properties(),
		CameraParams:     l.params,
		StorageDetail:    l.storage,
	}
}

// sendView publishes the view when it differs from the last one sent. A
// forced send also replays the last image for a newly connected client.
func (l *Logic) sendView(force bool) error {
	view := l.View()
	if !force && l.lastView != nil && reflect.DeepEqual(*l.lastView, view) {
		return nil
	}
	l.lastView = &view
	if err := l.out.Client(messages.NewView(view)); err != nil {
		return err
	}
	if force && l.lastImage != nil {
		return l.out.Client(messages.NewRgbImage(l.lastImage))
	}
	return nil
}

func (l *Logic) setDetail(detail string) {
	l.logger.Info("detail updated", zap.String("detail", detail))
	l.detail = detail
}

func (l *Logic) storageStatus() messages.ConnectionState {
	switch {
	case !l.storageEnabled:
		return messages.Disconnected
	case l.storage.State.State == messages.StorageAvailable:
		return messages.Established
	case l.storage.State.State == messages.StorageError:
		return messages.Disconnected
	default:
		return messages.Connecting
	}
}

func (l *Logic) triggerStatus() messages.ConnectionState {
	switch {
	case l.trigger == nil:
		return messages.Disconnected
	case *l.trigger:
		return messages.Established
	default:
		return messages.Connecting
	}
}
