// pkg/frame/debayer.go
package frame

import "math"

type channelOffsets struct {
	r  Offset
	g1 Offset
	g2 Offset
	b  Offset
}

var offsetGRBG = channelOffsets{
	r:  Offset{X: 1, Y: 0},
	g1: Offset{X: 1, Y: 1},
	g2: Offset{X: 0, Y: 0},
	b:  Offset{X: 0, Y: 1},
}

// DebayerScaleFast converts a GRBG mosaic into an RGB image of the given
// size by nearest-neighbour sampling. Only the first green site of each cell
// is used.
func DebayerScaleFast(raw *RawFrame, size Size, rendering RenderingType) (*RgbImage, error) {
	offsets := offsetGRBG

	r, err := resizeChannel(raw, size, offsets.r, rendering)
	if err != nil {
		return nil, err
	}
	g, err := resizeChannel(raw, size, offsets.g1, rendering)
	if err != nil {
		return nil, err
	}
	b, err := resizeChannel(raw, size, offsets.b, rendering)
	if err != nil {
		return nil, err
	}

	image, err := NewRgbImage(r, g, b)
	if err != nil {
		return nil, err
	}

	if rendering == Corners1x {
		DrawThirdsGrid(image)
	}
	return image, nil
}

func resizeChannel(raw *RawFrame, output Size, offset Offset, rendering RenderingType) (Plane, error) {
	input := Size{X: raw.Width(), Y: raw.Height()}
	table, err := ScaleLookupTable(input, output, offset, rendering)
	if err != nil {
		return Plane{}, err
	}
	return scaleWithLookupTable(raw, table), nil
}

func scaleWithLookupTable(raw *RawFrame, table LookupTable) Plane {
	result := NewPlane(len(table.X), len(table.Y))

	for line := 0; line < result.Height; line++ {
		dst := result.Line(line)
		src := raw.Line(table.Y[line])
		for x := range dst {
			dst[x] = src[table.X[x]]
		}
	}
	return result
}

// DrawThirdsGrid burns full-intensity lines at the 1/3 and 2/3 boundaries
// into every channel.
func DrawThirdsGrid(image *RgbImage) {
	widthThird := image.Width() / 3
	heightThird := image.Height() / 3

	for _, channel := range image.channels() {
		verticalLine(channel, widthThird, math.MaxUint16)
		verticalLine(channel, widthThird*2, math.MaxUint16)
		horizontalLine(channel, heightThird, math.MaxUint16)
		horizontalLine(channel, heightThird*2, math.MaxUint16)
	}
}

func horizontalLine(plane Plane, position int, value uint16) {
	if position >= plane.Height {
		return
	}
	line := plane.Line(position)
	for i := range line {
		line[i] = value
	}
}

func verticalLine(plane Plane, position int, value uint16) {
	if position >= plane.Width {
		return
	}
	for y := 0; y < plane.Height; y++ {
		plane.Line(y)[position] = value
	}
}
