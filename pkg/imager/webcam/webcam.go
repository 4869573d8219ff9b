// pkg/imager/webcam/webcam.go

// Package webcam exposes OpenCV capture devices as imagers. Captured BGR
// frames are re-mosaiced into a 16-bit GRBG Bayer frame so they travel the
// same pipeline as frames from a real CCD.
package webcam

import (
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/pkg/imager"
	"gocv.io/x/gocv"
)

// maxProbe bounds how many capture indices ListDevices tries.
const maxProbe = 5

type Driver struct {
	// Index, when non-negative, restricts the driver to one capture index.
	Index int
}

func NewDriver(index int) *Driver {
	return &Driver{Index: index}
}

func (d *Driver) ListDevices() ([]imager.DeviceDescriptor, error) {
	var devices []imager.DeviceDescriptor

	first, last := 0, maxProbe-1
	if d.Index >= 0 {
		first, last = d.Index, d.Index
	}
	for i := first; i <= last; i++ {
		capture, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		opened := capture.IsOpened()
		capture.Close()
		if !opened {
			continue
		}
		name := fmt.Sprintf("Camera %d", i)
		if i == 0 {
			name = "Built-in Camera"
		}
		devices = append(devices, imager.DeviceDescriptor{ID: i, Name: name})
	}
	return devices, nil
}

func (d *Driver) ConnectDevice(descriptor imager.DeviceDescriptor) (imager.Device, error) {
	capture, err := gocv.OpenVideoCapture(descriptor.ID)
	if err != nil {
		return nil, fmt.Errorf("error opening camera %d: %w", descriptor.ID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not open", descriptor.ID)
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		capture.Close()
		return nil, fmt.Errorf("camera %d reports invalid size %dx%d", descriptor.ID, width, height)
	}

	return &Device{
		descriptor: descriptor,
		capture:    capture,
		width:      width,
		height:     height,
	}, nil
}

type Device struct {
	descriptor imager.DeviceDescriptor
	capture    *gocv.VideoCapture
	width      int
	height     int

	exposing *imager.ExposureParams
	started  time.Time
	setpoint float64
}

func (d *Device) ReadProperties() (imager.Properties, error) {
	if d.capture == nil {
		return imager.Properties{}, imager.ErrNotConnected
	}
	return imager.Properties{
		Basic: imager.BasicProperties{Width: d.width, Height: d.height},
		Other: []imager.DeviceProperty{
			{Name: "Camera ID", Value: d.descriptor.Name},
			{Name: "Camera Chip Width", Value: fmt.Sprint(d.width)},
			{Name: "Camera Chip Height", Value: fmt.Sprint(d.height)},
			{Name: "Frame Rate", Value: fmt.Sprintf("%.1f", d.capture.Get(gocv.VideoCaptureFPS))},
			{Name: "Temperature Setpoint", Value: fmt.Sprintf("%.1f", d.setpoint)},
		},
	}, nil
}

func (d *Device) Close() {
	if d.capture != nil {
		d.capture.Close()
		d.capture = nil
	}
	d.exposing = nil
}

func (d *Device) StartExposure(params imager.ExposureParams) error {
	if d.capture == nil {
		return imager.ErrNotConnected
	}
	area := params.Area
	if area.X < 0 || area.Y < 0 || area.Width <= 0 || area.Height <= 0 ||
		area.X+area.Width > d.width || area.Y+area.Height > d.height {
		return fmt.Errorf("exposure area %+v outside %dx%d frame", area, d.width, d.height)
	}
	d.exposing = &params
	d.started = time.Now()
	return nil
}

// ImageReady reports true once the requested exposure time has passed; the
// webcam itself runs its own auto exposure.
func (d *Device) ImageReady() (bool, error) {
	if d.capture == nil {
		return false, imager.ErrNotConnected
	}
	if d.exposing == nil {
		return false, nil
	}
	return time.Since(d.started).Seconds() >= d.exposing.Time, nil
}

func (d *Device) DownloadImage(params imager.ExposureParams) ([]uint16, error) {
	if d.capture == nil {
		return nil, imager.ErrNotConnected
	}
	d.exposing = nil

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.capture.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("failed to read frame from camera %d", d.descriptor.ID)
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("unsupported frame type %v", img.Type())
	}
	if img.Cols() < params.Area.X+params.Area.Width || img.Rows() < params.Area.Y+params.Area.Height {
		return nil, fmt.Errorf("frame %dx%d smaller than exposure area", img.Cols(), img.Rows())
	}

	return mosaic(img.ToBytes(), img.Cols(), params), nil
}

// SetTemperature is accepted and reported back; webcams have no cooler.
func (d *Device) SetTemperature(celsius float64) error {
	if d.capture == nil {
		return imager.ErrNotConnected
	}
	d.setpoint = celsius
	return nil
}

// mosaic samples an interleaved BGR buffer into a GRBG Bayer layout, rows
// flipped to match CCD readout order, scaled from 8 to 16 bits and by gain.
func mosaic(bgr []byte, cols int, params imager.ExposureParams) []uint16 {
	area := params.Area
	gain := 1 + float64(params.Gain)/100
	out := make([]uint16, area.PixelCount())

	for y := 0; y < area.Height; y++ {
		srcY := area.Y + area.Height - 1 - y
		for x := 0; x < area.Width; x++ {
			srcX := area.X + x
			var channel int // BGR index
			switch {
			case x%2 == 1 && y%2 == 0:
				channel = 2
			case x%2 == 0 && y%2 == 1:
				channel = 0
			default:
				channel = 1
			}
			value := float64(bgr[(srcY*cols+srcX)*3+channel]) * 256 * gain
			if value > 65535 {
				value = 65535
			}
			out[y*area.Width+x] = uint16(value)
		}
	}
	return out
}
