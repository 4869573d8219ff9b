// pkg/imager/imager.go
package imager

import "errors"

// ErrNotConnected is returned by devices used after Close.
var ErrNotConnected = errors.New("imager: device not connected")

type DeviceDescriptor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Driver discovers and opens imaging devices.
type Driver interface {
	ListDevices() ([]DeviceDescriptor, error)
	ConnectDevice(descriptor DeviceDescriptor) (Device, error)
}

// Device is a single connected camera. Calls are made from one goroutine
// (the logic actor) and need not be safe for concurrent use.
type Device interface {
	ReadProperties() (Properties, error)
	Close()

	// Exposure control
	StartExposure(params ExposureParams) error
	ImageReady() (bool, error)
	DownloadImage(params ExposureParams) ([]uint16, error)

	// SetTemperature sets the sensor cooling setpoint in Celsius.
	SetTemperature(celsius float64) error
}

type Properties struct {
	Basic BasicProperties  `json:"basic"`
	Other []DeviceProperty `json:"other"`
}

type BasicProperties struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DeviceProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ExposureParams struct {
	Gain uint16       `json:"gain"`
	Time float64      `json:"time"`
	Area ExposureArea `json:"area"`
}

type ExposureArea struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (a ExposureArea) PixelCount() int {
	return a.Width * a.Height
}

// FullChip returns an area covering the whole sensor.
func (p BasicProperties) FullChip() ExposureArea {
	return ExposureArea{X: 0, Y: 0, Width: p.Width, Height: p.Height}
}
