package webcam

import (
	"testing"

	"github.com/AlverezYari/skyframe/pkg/imager"
)

func TestMosaicSamplesGRBG(t *testing.T) {
	const cols, rows = 4, 4
	bgr := make([]byte, cols*rows*3)
	for i := 0; i < cols*rows; i++ {
		bgr[i*3+0] = 30 // blue
		bgr[i*3+1] = 20 // green
		bgr[i*3+2] = 10 // red
	}

	params := imager.ExposureParams{Area: imager.ExposureArea{Width: cols, Height: rows}}
	out := mosaic(bgr, cols, params)

	tests := []struct {
		x, y int
		want uint16
	}{
		{1, 0, 10 * 256},
		{0, 1, 30 * 256},
		{0, 0, 20 * 256},
		{1, 1, 20 * 256},
	}
	for _, tt := range tests {
		if got := out[tt.y*cols+tt.x]; got != tt.want {
			t.Fatalf("site (%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestMosaicFlipsRowsAndClampsGain(t *testing.T) {
	const cols, rows = 2, 2
	bgr := make([]byte, cols*rows*3)
	// bottom row fully bright
	for x := 0; x < cols; x++ {
		for c := 0; c < 3; c++ {
			bgr[(1*cols+x)*3+c] = 255
		}
	}
	params := imager.ExposureParams{Gain: 500, Area: imager.ExposureArea{Width: cols, Height: rows}}
	out := mosaic(bgr, cols, params)

	if out[0] != 65535 || out[1] != 65535 {
		t.Fatalf("expected first output row from sensor bottom row clamped to max, got %v", out[:2])
	}
	if out[2] != 0 || out[3] != 0 {
		t.Fatalf("expected dark second row, got %v", out[2:])
	}
}
