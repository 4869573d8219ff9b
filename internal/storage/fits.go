// internal/storage/fits.go
package storage

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/astrogo/fitsio"
	"github.com/zeebo/blake3"
)

// FrameWriter persists one raw frame to path.
type FrameWriter interface {
	Save(raw *frame.RawFrame, path string) error
}

// FitsWriter stores frames as 16-bit unsigned FITS images.
type FitsWriter struct {
	now    func() time.Time
	create func(path string) (io.WriteCloser, error)
}

func NewFitsWriter() *FitsWriter {
	return &FitsWriter{now: time.Now, create: createFile}
}

func createFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	return os.Create(path)
}

// Save writes raw to path. The file only counts as written once every
// close, including the final flush, succeeded.
func (w *FitsWriter) Save(raw *frame.RawFrame, path string) (err error) {
	f, err := w.create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer closeInto(&err, "close file", f)

	fits, err := fitsio.Create(f)
	if err != nil {
		return fmt.Errorf("create fits: %w", err)
	}
	defer closeInto(&err, "close fits", fits)

	img := fitsio.NewImage(16, []int{raw.Width(), raw.Height()})
	defer closeInto(&err, "close image", img)

	params := raw.Params
	err = img.Header().Append(
		fitsio.Card{Name: "BZERO", Value: 32768, Comment: "unsigned 16-bit data"},
		fitsio.Card{Name: "BSCALE", Value: 1},
		fitsio.Card{Name: "EXPTIME", Value: params.Time, Comment: "exposure time in seconds"},
		fitsio.Card{Name: "GAIN", Value: int(params.Gain)},
		fitsio.Card{Name: "DATE-OBS", Value: w.now().UTC().Format("2006-01-02T15:04:05.000")},
		fitsio.Card{Name: "XORGSUBF", Value: params.Area.X, Comment: "subframe origin on x axis"},
		fitsio.Card{Name: "YORGSUBF", Value: params.Area.Y, Comment: "subframe origin on y axis"},
		fitsio.Card{Name: "BAYERPAT", Value: "GRBG"},
	)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	pixels := make([]int16, len(raw.Data))
	for i, v := range raw.Data {
		pixels[i] = int16(int32(v) - 32768)
	}
	if err := img.Write(pixels); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := fits.Write(img); err != nil {
		return fmt.Errorf("write hdu: %w", err)
	}
	return nil
}

// closeInto closes c and keeps its error in *err unless an earlier one is
// already there.
func closeInto(err *error, what string, c io.Closer) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("%s: %w", what, cerr)
	}
}

// Digest returns the blake3 hex digest of the frame's little-endian samples.
func Digest(raw *frame.RawFrame) string {
	h := blake3.New()
	buf := make([]byte, 2*len(raw.Data))
	for i, v := range raw.Data {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	_, _ = h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}
