// pkg/frame/frame.go
package frame

import (
	"errors"
	"fmt"

	"github.com/AlverezYari/skyframe/pkg/imager"
)

var (
	ErrChannelMismatch = errors.New("frame: image channels do not have same dimensions")
	ErrFrameTooSmall   = errors.New("frame: input frame too small")
	ErrBufferSize      = errors.New("frame: buffer size does not match exposure area")
)

// Size is an image size in pixels.
type Size struct {
	X int `json:"width" yaml:"width"`
	Y int `json:"height" yaml:"height"`
}

func NewSize(x, y int) Size {
	return Size{X: x, Y: y}
}

// RawFrame is a downloaded Bayer mosaic together with the parameters it was
// exposed with. It is never modified after NewRawFrame returns.
type RawFrame struct {
	Params imager.ExposureParams
	Data   []uint16
}

func NewRawFrame(params imager.ExposureParams, data []uint16) (*RawFrame, error) {
	if len(data) != params.Area.PixelCount() {
		return nil, fmt.Errorf("%w: got %d samples for %dx%d",
			ErrBufferSize, len(data), params.Area.Width, params.Area.Height)
	}
	return &RawFrame{Params: params, Data: data}, nil
}

func (f *RawFrame) Width() int  { return f.Params.Area.Width }
func (f *RawFrame) Height() int { return f.Params.Area.Height }

// Line returns row y of the mosaic.
func (f *RawFrame) Line(y int) []uint16 {
	w := f.Params.Area.Width
	return f.Data[y*w : (y+1)*w]
}

// Plane is a single 16-bit channel.
type Plane struct {
	Width  int
	Height int
	Pix    []uint16
}

func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

func (p Plane) Size() Size {
	return Size{X: p.Width, Y: p.Height}
}

func (p Plane) Line(y int) []uint16 {
	return p.Pix[y*p.Width : (y+1)*p.Width]
}

// RgbImage holds separate red, green and blue planes of equal size.
type RgbImage struct {
	r, g, b Plane
}

func NewRgbImage(r, g, b Plane) (*RgbImage, error) {
	if r.Size() != g.Size() || g.Size() != b.Size() {
		return nil, fmt.Errorf("%w: r: %v, g: %v, b: %v",
			ErrChannelMismatch, r.Size(), g.Size(), b.Size())
	}
	return &RgbImage{r: r, g: g, b: b}, nil
}

func (i *RgbImage) Width() int   { return i.r.Width }
func (i *RgbImage) Height() int  { return i.r.Height }
func (i *RgbImage) Red() Plane   { return i.r }
func (i *RgbImage) Green() Plane { return i.g }
func (i *RgbImage) Blue() Plane  { return i.b }

func (i *RgbImage) channels() [3]Plane {
	return [3]Plane{i.r, i.g, i.b}
}
