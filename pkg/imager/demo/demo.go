// pkg/imager/demo/demo.go

// Package demo implements a simulated camera that renders a synthetic star
// field, so the whole service can run without hardware.
package demo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/AlverezYari/skyframe/pkg/imager"
)

const (
	ChipWidth  = 1600
	ChipHeight = 1200

	starCount  = 120
	biasLevel  = 600
	noiseLevel = 40
)

var errNotReady = errors.New("demo: image not ready")

type Driver struct {
	seed int64
	now  func() time.Time
}

func NewDriver() *Driver {
	return &Driver{seed: time.Now().UnixNano(), now: time.Now}
}

// NewDriverWithClock returns a driver whose devices use the given clock and
// a fixed seed, for reproducible frames in tests.
func NewDriverWithClock(seed int64, now func() time.Time) *Driver {
	return &Driver{seed: seed, now: now}
}

func (d *Driver) ListDevices() ([]imager.DeviceDescriptor, error) {
	return []imager.DeviceDescriptor{{ID: 0, Name: "Demo Camera #0"}}, nil
}

func (d *Driver) ConnectDevice(descriptor imager.DeviceDescriptor) (imager.Device, error) {
	if descriptor.ID != 0 {
		return nil, fmt.Errorf("demo: unknown device %d", descriptor.ID)
	}
	rng := rand.New(rand.NewSource(d.seed))
	return &Device{
		now:         d.now,
		rng:         rng,
		stars:       randomStars(rng),
		temperature: 20,
		target:      20,
	}, nil
}

type star struct {
	x, y       int
	brightness float64
	// relative response of red, green and blue sites
	color [3]float64
}

type Device struct {
	now    func() time.Time
	rng    *rand.Rand
	stars  []star
	closed bool

	exposing *imager.ExposureParams
	started  time.Time

	temperature float64
	target      float64
	reads       int
}

func (d *Device) ReadProperties() (imager.Properties, error) {
	if d.closed {
		return imager.Properties{}, imager.ErrNotConnected
	}
	d.reads++
	// cooler approaches the setpoint one degree per read
	switch {
	case d.temperature > d.target+0.5:
		d.temperature--
	case d.temperature < d.target-0.5:
		d.temperature++
	default:
		d.temperature = d.target
	}

	return imager.Properties{
		Basic: imager.BasicProperties{Width: ChipWidth, Height: ChipHeight},
		Other: []imager.DeviceProperty{
			prop("Chip Temperature", fmt.Sprintf("%.1f", d.temperature)),
			prop("Temperature Setpoint", fmt.Sprintf("%.1f", d.target)),
			prop("Supply Voltage", "12.1"),
			prop("Camera ID", "DEMO-0001"),
			prop("Camera Chip Width", fmt.Sprint(ChipWidth)),
			prop("Camera Chip Height", fmt.Sprint(ChipHeight)),
			prop("Min Exposure Time", "0.001"),
			prop("Max Exposure Time", "3600"),
			prop("Max Gain", "4095"),
			prop("Property Reads", fmt.Sprint(d.reads)),
		},
	}, nil
}

func (d *Device) Close() {
	d.closed = true
	d.exposing = nil
}

func (d *Device) StartExposure(params imager.ExposureParams) error {
	if d.closed {
		return imager.ErrNotConnected
	}
	area := params.Area
	if area.X < 0 || area.Y < 0 || area.Width <= 0 || area.Height <= 0 ||
		area.X+area.Width > ChipWidth || area.Y+area.Height > ChipHeight {
		return fmt.Errorf("demo: exposure area %+v outside chip", area)
	}
	if params.Time < 0 {
		return fmt.Errorf("demo: negative exposure time %v", params.Time)
	}
	d.exposing = &params
	d.started = d.now()
	return nil
}

func (d *Device) ImageReady() (bool, error) {
	if d.closed {
		return false, imager.ErrNotConnected
	}
	if d.exposing == nil {
		return false, nil
	}
	elapsed := d.now().Sub(d.started).Seconds()
	return elapsed >= d.exposing.Time, nil
}

func (d *Device) DownloadImage(params imager.ExposureParams) ([]uint16, error) {
	ready, err := d.ImageReady()
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, errNotReady
	}
	d.exposing = nil
	return d.render(params), nil
}

func (d *Device) SetTemperature(celsius float64) error {
	if d.closed {
		return imager.ErrNotConnected
	}
	d.target = celsius
	return nil
}

func (d *Device) render(params imager.ExposureParams) []uint16 {
	area := params.Area
	data := make([]uint16, area.PixelCount())
	for i := range data {
		data[i] = uint16(biasLevel + d.rng.Intn(noiseLevel))
	}

	// signal grows with exposure time and gain
	scale := math.Max(params.Time, 0.001) * (1 + float64(params.Gain)/100)

	for _, s := range d.stars {
		for dy := -3; dy <= 3; dy++ {
			for dx := -3; dx <= 3; dx++ {
				x, y := s.x+dx-area.X, s.y+dy-area.Y
				if x < 0 || y < 0 || x >= area.Width || y >= area.Height {
					continue
				}
				profile := math.Exp(-float64(dx*dx+dy*dy) / 2.5)
				site := bayerSite(s.x+dx, s.y+dy)
				value := float64(data[y*area.Width+x]) + s.brightness*scale*profile*s.color[site]
				data[y*area.Width+x] = uint16(math.Min(value, math.MaxUint16))
			}
		}
	}
	return data
}

// bayerSite returns the channel index (0 red, 1 green, 2 blue) of a sensor
// position in a GRBG mosaic.
func bayerSite(x, y int) int {
	switch {
	case x%2 == 1 && y%2 == 0:
		return 0
	case x%2 == 0 && y%2 == 1:
		return 2
	default:
		return 1
	}
}

func randomStars(rng *rand.Rand) []star {
	stars := make([]star, starCount)
	for i := range stars {
		warmth := rng.Float64()
		stars[i] = star{
			x:          rng.Intn(ChipWidth),
			y:          rng.Intn(ChipHeight),
			brightness: 200 + rng.ExpFloat64()*3000,
			color:      [3]float64{0.6 + 0.4*warmth, 1, 1 - 0.4*warmth},
		}
	}
	return stars
}

func prop(name, value string) imager.DeviceProperty {
	return imager.DeviceProperty{Name: name, Value: value}
}
