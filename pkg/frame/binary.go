// pkg/frame/binary.go
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic values opening every binary image payload.
const (
	Magic1 uint16 = 45812
	Magic2 uint16 = 19724
)

const headerSize = 8

var (
	ErrInvalidMagic = errors.New("frame: invalid image header magic")
	ErrShortPayload = errors.New("frame: image payload too short")
	ErrImageTooWide = errors.New("frame: image dimensions exceed 65535")
)

// EncodeRgbImage serializes an image as two magic values, width, height and
// then the red, green and blue planes row by row. All fields are
// little-endian u16.
func EncodeRgbImage(image *RgbImage) ([]byte, error) {
	w, h := image.Width(), image.Height()
	if w > 0xFFFF || h > 0xFFFF {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooWide, w, h)
	}

	buf := make([]byte, 0, headerSize+w*h*3*2)
	buf = binary.LittleEndian.AppendUint16(buf, Magic1)
	buf = binary.LittleEndian.AppendUint16(buf, Magic2)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(w))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h))

	for _, channel := range image.channels() {
		for _, pixel := range channel.Pix {
			buf = binary.LittleEndian.AppendUint16(buf, pixel)
		}
	}
	return buf, nil
}

// DecodeRgbImage parses the format written by EncodeRgbImage. Trailing bytes
// beyond the declared dimensions are ignored.
func DecodeRgbImage(data []byte) (*RgbImage, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: missing magic", ErrInvalidMagic)
	}
	if m1, m2 := binary.LittleEndian.Uint16(data[0:]), binary.LittleEndian.Uint16(data[2:]); m1 != Magic1 || m2 != Magic2 {
		return nil, fmt.Errorf("%w: got %d %d", ErrInvalidMagic, m1, m2)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: missing dimensions", ErrShortPayload)
	}

	w := int(binary.LittleEndian.Uint16(data[4:]))
	h := int(binary.LittleEndian.Uint16(data[6:]))
	need := headerSize + w*h*3*2
	if len(data) < need {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrShortPayload, w, h, need, len(data))
	}

	offset := headerSize
	readPlane := func() Plane {
		plane := NewPlane(w, h)
		for i := range plane.Pix {
			plane.Pix[i] = binary.LittleEndian.Uint16(data[offset:])
			offset += 2
		}
		return plane
	}

	r := readPlane()
	g := readPlane()
	b := readPlane()
	return NewRgbImage(r, g, b)
}
