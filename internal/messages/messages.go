// internal/messages/messages.go
package messages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AlverezYari/skyframe/pkg/frame"
)

var ErrInvalidMessage = errors.New("invalid message")

// StateType tags a StateMessage.
type StateType string

const (
	// Sent by remote clients
	ClientConnected StateType = "client_connected"
	Reconnect       StateType = "reconnect"
	Exposure        StateType = "exposure"
	CameraParam     StateType = "camera_param"
	Storage         StateType = "storage"

	// Produced inside the service
	TriggerValueChanged  StateType = "trigger_value_changed"
	StorageStateChanged  StateType = "storage_state"
	StorageDetailChanged StateType = "storage_detail"
	FrameProcessed       StateType = "frame_processed"
)

// StateMessage is an inbound command for the logic actor. Exactly the field
// matching Type is set.
type StateMessage struct {
	Type          StateType           `json:"type"`
	CameraParam   *CameraParamMessage `json:"camera_param,omitempty"`
	Storage       *StorageCommand     `json:"storage,omitempty"`
	Trigger       *bool               `json:"trigger,omitempty"`
	StorageState  *StorageState       `json:"storage_state,omitempty"`
	StorageDetail *StorageDetail      `json:"storage_detail,omitempty"`
	Image         *frame.RgbImage     `json:"-"`
}

type CameraParamType string

const (
	EnableLoop         CameraParamType = "enable_loop"
	SetGain            CameraParamType = "set_gain"
	SetTime            CameraParamType = "set_time"
	SetTemperature     CameraParamType = "set_temperature"
	SetHeatingPwm      CameraParamType = "set_heating_pwm"
	SetRendering       CameraParamType = "set_rendering"
	SetTriggerRequired CameraParamType = "set_trigger_required"
)

type CameraParamMessage struct {
	Type        CameraParamType     `json:"type"`
	Enabled     bool                `json:"enabled,omitempty"`
	Gain        uint16              `json:"gain,omitempty"`
	Time        float64             `json:"time,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Heating     float64             `json:"heating,omitempty"`
	Rendering   frame.RenderingType `json:"rendering,omitempty"`
}

// Apply returns params with the change applied.
func (m CameraParamMessage) Apply(params CameraParams) (CameraParams, error) {
	switch m.Type {
	case EnableLoop:
		params.LoopEnabled = m.Enabled
	case SetGain:
		params.Gain = m.Gain
	case SetTime:
		if m.Time < 0 {
			return params, fmt.Errorf("%w: negative exposure time %v", ErrInvalidMessage, m.Time)
		}
		params.Time = m.Time
	case SetTemperature:
		params.Temperature = m.Temperature
	case SetHeatingPwm:
		if m.Heating < 0 || m.Heating > 1 {
			return params, fmt.Errorf("%w: heating pwm %v outside 0..1", ErrInvalidMessage, m.Heating)
		}
		params.HeatingPwm = m.Heating
	case SetRendering:
		if !m.Rendering.Valid() {
			return params, fmt.Errorf("%w: rendering %q", ErrInvalidMessage, m.Rendering)
		}
		params.Rendering = m.Rendering
	case SetTriggerRequired:
		params.TriggerRequired = m.Enabled
	default:
		return params, fmt.Errorf("%w: camera param %q", ErrInvalidMessage, m.Type)
	}
	return params, nil
}

type StorageCommandType string

const (
	StorageEnable       StorageCommandType = "enable"
	StorageDisable      StorageCommandType = "disable"
	StorageSetDirectory StorageCommandType = "set_directory"
)

type StorageCommand struct {
	Type      StorageCommandType `json:"type"`
	Directory string             `json:"directory,omitempty"`
}

func NewClientConnected() StateMessage { return StateMessage{Type: ClientConnected} }
func NewReconnect() StateMessage       { return StateMessage{Type: Reconnect} }
func NewExposure() StateMessage        { return StateMessage{Type: Exposure} }

func NewCameraParam(m CameraParamMessage) StateMessage {
	return StateMessage{Type: CameraParam, CameraParam: &m}
}

func NewStorageCommand(c StorageCommand) StateMessage {
	return StateMessage{Type: Storage, Storage: &c}
}

func NewTriggerValueChanged(value bool) StateMessage {
	return StateMessage{Type: TriggerValueChanged, Trigger: &value}
}

func NewStorageState(s StorageState) StateMessage {
	return StateMessage{Type: StorageStateChanged, StorageState: &s}
}

func NewStorageDetail(d StorageDetail) StateMessage {
	return StateMessage{Type: StorageDetailChanged, StorageDetail: &d}
}

func NewFrameProcessed(image *frame.RgbImage) StateMessage {
	return StateMessage{Type: FrameProcessed, Image: image}
}

// DecodeClientMessage parses a JSON command from a remote client. Types that
// only the service itself may produce are rejected.
func DecodeClientMessage(data []byte) (StateMessage, error) {
	var msg StateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StateMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.Type {
	case ClientConnected, Reconnect, Exposure:
	case CameraParam:
		if msg.CameraParam == nil {
			return StateMessage{}, fmt.Errorf("%w: camera_param without payload", ErrInvalidMessage)
		}
	case Storage:
		if msg.Storage == nil {
			return StateMessage{}, fmt.Errorf("%w: storage without payload", ErrInvalidMessage)
		}
	default:
		return StateMessage{}, fmt.Errorf("%w: type %q not accepted from clients", ErrInvalidMessage, msg.Type)
	}

	// drop fields that do not belong to the tag
	return StateMessage{Type: msg.Type, CameraParam: msg.CameraParam, Storage: msg.Storage}, nil
}

// ClientType tags an outbound ClientMessage.
type ClientType string

const (
	ClientView      ClientType = "view"
	ClientRgbImage  ClientType = "rgb_image"
	ClientReconnect ClientType = "reconnect"
)

// ClientMessage is sent to every connected viewer. Images travel as binary
// frames, everything else as JSON.
type ClientMessage struct {
	Type  ClientType      `json:"type"`
	View  *ViewState      `json:"view,omitempty"`
	Image *frame.RgbImage `json:"-"`
}

func NewView(view ViewState) ClientMessage {
	return ClientMessage{Type: ClientView, View: &view}
}

func NewRgbImage(image *frame.RgbImage) ClientMessage {
	return ClientMessage{Type: ClientRgbImage, Image: image}
}

func NewClientReconnect() ClientMessage {
	return ClientMessage{Type: ClientReconnect}
}

// Encode returns the wire payload and whether it is a binary frame.
func (m ClientMessage) Encode() ([]byte, bool, error) {
	if m.Type == ClientRgbImage {
		if m.Image == nil {
			return nil, true, fmt.Errorf("%w: rgb_image without image", ErrInvalidMessage)
		}
		data, err := frame.EncodeRgbImage(m.Image)
		return data, true, err
	}
	data, err := json.Marshal(m)
	return data, false, err
}

// ProcessMessage asks the process actor to convert a raw frame for display.
type ProcessMessage struct {
	Frame     *frame.RawFrame
	Size      frame.Size
	Rendering frame.RenderingType
}

type StorageMessageType string

const (
	EnableStore  StorageMessageType = "enable"
	DisableStore StorageMessageType = "disable"
	SetDirectory StorageMessageType = "set_directory"
	ProcessImage StorageMessageType = "process_image"
)

type StorageMessage struct {
	Type      StorageMessageType
	Directory string
	Frame     *frame.RawFrame
	// Dropped counts frames the sender discarded since its last delivered
	// message because the storage queue was full.
	Dropped   int
}

type IoMessageType string

const (
	IoSetHeating        IoMessageType = "set_heating"
	IoSetExposureActive IoMessageType = "set_exposure_active"
	IoSetStatus         IoMessageType = "set_status"
)

type StatusMode string

const (
	StatusOn    StatusMode = "on"
	StatusError StatusMode = "error"
	StatusOff   StatusMode = "off"
)

type IoMessage struct {
	Type IoMessageType
	// Heating PWM duty between 0.0 and 1.0
	Heating float64
	// True while an exposure is in flight
	Active bool
	Status StatusMode
}
