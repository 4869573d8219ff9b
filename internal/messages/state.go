// internal/messages/state.go
package messages

import (
	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/AlverezYari/skyframe/pkg/imager"
)

// ConnectionState describes any link or activity: camera, exposure,
// storage, trigger.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Established  ConnectionState = "established"
)

// CameraParams is the user-settable shooting configuration owned by the
// logic actor. It is copied by value into the exposure sequencer.
type CameraParams struct {
	LoopEnabled     bool                `json:"loop_enabled"`
	Gain            uint16              `json:"gain"`
	Time            float64             `json:"time"`
	Rendering       frame.RenderingType `json:"rendering"`
	RenderSize      frame.Size          `json:"render_size"`
	Temperature     float64             `json:"temperature"`
	HeatingPwm      float64             `json:"heating_pwm"`
	TriggerRequired bool                `json:"trigger_required"`
}

func DefaultCameraParams(renderSize frame.Size) CameraParams {
	return CameraParams{
		Gain:        0,
		Time:        1.0,
		Rendering:   frame.FullImage,
		RenderSize:  renderSize,
		Temperature: 20.0,
	}
}

type StorageStateKind string

const (
	StorageUnknown   StorageStateKind = "unknown"
	StorageError     StorageStateKind = "error"
	StorageAvailable StorageStateKind = "available"
)

// StorageState is the last observed free-space reading.
type StorageState struct {
	State          StorageStateKind `json:"state"`
	Error          string           `json:"error,omitempty"`
	TotalGigabytes float64          `json:"total_gigabytes,omitempty"`
	FreeGigabytes  float64          `json:"free_gigabytes,omitempty"`
}

func StorageStateError(reason string) StorageState {
	return StorageState{State: StorageError, Error: reason}
}

func StorageStateAvailable(total, free float64) StorageState {
	return StorageState{State: StorageAvailable, TotalGigabytes: total, FreeGigabytes: free}
}

type StorageOutcome string

const (
	OutcomeSuccess StorageOutcome = "success"
	OutcomeError   StorageOutcome = "error"
)

type StorageLogRecord struct {
	Name    string         `json:"name"`
	Outcome StorageOutcome `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	Digest  string         `json:"digest,omitempty"`
}

type StorageDetail struct {
	Directory string             `json:"directory"`
	Counter   int                `json:"counter"`
	Log       []StorageLogRecord `json:"log"`
	Enabled   bool               `json:"enabled"`
	State     StorageState       `json:"state"`
}

type LogicStatus struct {
	Camera   ConnectionState `json:"camera"`
	Exposure ConnectionState `json:"exposure"`
	Storage  ConnectionState `json:"storage"`
	Trigger  ConnectionState `json:"trigger"`
}

// ViewState is the snapshot pushed to clients. It is rebuilt on every logic
// tick and compared structurally with the previous one.
type ViewState struct {
	Detail           string             `json:"detail"`
	Status           LogicStatus        `json:"status"`
	CameraProperties *imager.Properties `json:"camera_properties"`
	CameraParams     CameraParams       `json:"camera_params"`
	StorageDetail    StorageDetail      `json:"storage_detail"`
}
