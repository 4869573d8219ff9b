package frame

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/AlverezYari/skyframe/pkg/imager"
)

func testRawFrame(t *testing.T, width, height int, fill func(x, y int) uint16) *RawFrame {
	t.Helper()
	data := make([]uint16, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = fill(x, y)
		}
	}
	params := imager.ExposureParams{Gain: 1, Time: 1, Area: imager.ExposureArea{Width: width, Height: height}}
	raw, err := NewRawFrame(params, data)
	if err != nil {
		t.Fatalf("NewRawFrame: %v", err)
	}
	return raw
}

func TestNewRawFrameRejectsWrongLength(t *testing.T) {
	params := imager.ExposureParams{Area: imager.ExposureArea{Width: 4, Height: 4}}
	if _, err := NewRawFrame(params, make([]uint16, 15)); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("expected ErrBufferSize, got %v", err)
	}
}

func TestNewRgbImageRejectsMismatchedPlanes(t *testing.T) {
	_, err := NewRgbImage(NewPlane(4, 4), NewPlane(4, 4), NewPlane(4, 3))
	if !errors.Is(err, ErrChannelMismatch) {
		t.Fatalf("expected ErrChannelMismatch, got %v", err)
	}
}

func TestDebayerSelectsBayerSites(t *testing.T) {
	// Encode the site parity into the value: GRBG with R at (1,0), G at
	// (1,1), B at (0,1).
	raw := testRawFrame(t, 8, 8, func(x, y int) uint16 {
		switch {
		case x%2 == 1 && y%2 == 0:
			return 100
		case x%2 == 1 && y%2 == 1:
			return 200
		case x%2 == 0 && y%2 == 1:
			return 300
		default:
			return 1
		}
	})

	image, err := DebayerScaleFast(raw, NewSize(4, 4), FullImage)
	if err != nil {
		t.Fatalf("DebayerScaleFast: %v", err)
	}
	if image.Width() != 4 || image.Height() != 4 {
		t.Fatalf("unexpected size %dx%d", image.Width(), image.Height())
	}
	for name, tc := range map[string]struct {
		plane Plane
		want  uint16
	}{
		"red":   {image.Red(), 100},
		"green": {image.Green(), 200},
		"blue":  {image.Blue(), 300},
	} {
		for i, v := range tc.plane.Pix {
			if v != tc.want {
				t.Fatalf("%s pixel %d = %d, want %d", name, i, v, tc.want)
			}
		}
	}
}

func TestDebayerFlipsRows(t *testing.T) {
	raw := testRawFrame(t, 4, 4, func(x, y int) uint16 { return uint16(y) })
	image, err := DebayerScaleFast(raw, NewSize(2, 2), FullImage)
	if err != nil {
		t.Fatalf("DebayerScaleFast: %v", err)
	}
	// red sits on even rows: output row 0 must come from the last even row.
	if got := image.Red().Line(0)[0]; got != 2 {
		t.Fatalf("expected first output row from sensor row 2, got %d", got)
	}
	if got := image.Red().Line(1)[0]; got != 0 {
		t.Fatalf("expected second output row from sensor row 0, got %d", got)
	}
}

func TestDebayerCornersDrawsGrid(t *testing.T) {
	raw := testRawFrame(t, 36, 36, func(x, y int) uint16 { return 7 })
	image, err := DebayerScaleFast(raw, NewSize(9, 9), Corners1x)
	if err != nil {
		t.Fatalf("DebayerScaleFast: %v", err)
	}
	for _, plane := range []Plane{image.Red(), image.Green(), image.Blue()} {
		if plane.Line(3)[0] != math.MaxUint16 || plane.Line(0)[6] != math.MaxUint16 {
			t.Fatalf("expected grid lines at thirds")
		}
		if plane.Line(1)[1] != 7 {
			t.Fatalf("expected untouched pixel off the grid, got %d", plane.Line(1)[1])
		}
	}
}

func TestDebayerRejectsTinyFrame(t *testing.T) {
	raw := testRawFrame(t, 1, 1, func(x, y int) uint16 { return 0 })
	if _, err := DebayerScaleFast(raw, NewSize(4, 4), FullImage); !errors.Is(err, ErrFrameTooSmall) {
		t.Fatalf("expected ErrFrameTooSmall, got %v", err)
	}
}

func randomImage(rng *rand.Rand, w, h int) *RgbImage {
	planes := [3]Plane{}
	for c := range planes {
		planes[c] = NewPlane(w, h)
		for i := range planes[c].Pix {
			planes[c].Pix[i] = uint16(rng.Intn(math.MaxUint16 + 1))
		}
	}
	image, _ := NewRgbImage(planes[0], planes[1], planes[2])
	return image
}

func TestBinaryRoundTrip(t *testing.T) {
	roundTrip := func(w, h uint8, seed int64) bool {
		image := randomImage(rand.New(rand.NewSource(seed)), int(w%64), int(h%64))
		data, err := EncodeRgbImage(image)
		if err != nil {
			return false
		}
		decoded, err := DecodeRgbImage(data)
		if err != nil {
			return false
		}
		return reflect.DeepEqual(image, decoded)
	}
	if err := quick.Check(roundTrip, nil); err != nil {
		t.Fatal(err)
	}
}

func TestBinaryLayout(t *testing.T) {
	r, g, b := NewPlane(1, 1), NewPlane(1, 1), NewPlane(1, 1)
	r.Pix[0], g.Pix[0], b.Pix[0] = 0x0102, 0x0304, 0x0506
	image, _ := NewRgbImage(r, g, b)

	data, err := EncodeRgbImage(image)
	if err != nil {
		t.Fatalf("EncodeRgbImage: %v", err)
	}
	want := []byte{0xF4, 0xB2, 0x0C, 0x4D, 1, 0, 1, 0, 0x02, 0x01, 0x04, 0x03, 0x06, 0x05}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("got % x, want % x", data, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	image := randomImage(rand.New(rand.NewSource(1)), 3, 2)
	valid, _ := EncodeRgbImage(image)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidMagic},
		{"bad magic", append([]byte{0, 0, 0, 0}, valid[4:]...), ErrInvalidMagic},
		{"no dimensions", valid[:6], ErrShortPayload},
		{"truncated planes", valid[:len(valid)-1], ErrShortPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRgbImage(tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
