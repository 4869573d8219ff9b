// pkg/frame/lookup.go
package frame

import (
	"fmt"
	"slices"
)

// RenderingType selects how the sensor is mapped onto the output image.
type RenderingType string

const (
	// FullImage decimates the whole sensor into the output.
	FullImage RenderingType = "full_image"
	// Center1x is a 1:1 crop of the sensor center.
	Center1x RenderingType = "center_1x"
	// Corners1x shows the four corners and the center at 1:1 in a 3x3 layout.
	Corners1x RenderingType = "corners_1x"
)

func (r RenderingType) Valid() bool {
	switch r {
	case FullImage, Center1x, Corners1x:
		return true
	}
	return false
}

// Next cycles through rendering types in display order.
func (r RenderingType) Next() RenderingType {
	switch r {
	case FullImage:
		return Center1x
	case Center1x:
		return Corners1x
	default:
		return FullImage
	}
}

// LookupTable maps each output column and row to an input column and row.
type LookupTable struct {
	X []int
	Y []int
}

// Offset selects one Bayer sub-pixel of a 2x2 cell.
type Offset struct {
	X int
	Y int
}

// ScaleLookupTable builds the table for one color channel. The strategies
// work on the half-resolution grid of 2x2 Bayer cells; coordinates are then
// doubled and offset to land on the requested sub-pixel. Rows are reversed
// because the sensor reads out bottom-up.
func ScaleLookupTable(input, output Size, offset Offset, rendering RenderingType) (LookupTable, error) {
	if input.X < 2 || input.Y < 2 {
		return LookupTable{}, fmt.Errorf("%w: %dx%d", ErrFrameTooSmall, input.X, input.Y)
	}
	if output.X < 0 || output.Y < 0 {
		return LookupTable{}, fmt.Errorf("frame: invalid output size %dx%d", output.X, output.Y)
	}
	half := Size{X: input.X / 2, Y: input.Y / 2}

	var table LookupTable
	switch rendering {
	case Center1x:
		table = lookupCenter(half, output)
	case Corners1x:
		table = lookupCorners(half, output)
	default:
		table = lookupFullImage(half, output)
	}

	return applyOffsets(table, offset), nil
}

func applyOffsets(table LookupTable, offset Offset) LookupTable {
	for i, x := range table.X {
		table.X[i] = x*2 + offset.X
	}
	slices.Reverse(table.Y)
	for i, y := range table.Y {
		table.Y[i] = y*2 + offset.Y
	}
	return table
}

func lookupFullImage(input, output Size) LookupTable {
	table := LookupTable{X: make([]int, output.X), Y: make([]int, output.Y)}
	for x := range table.X {
		table.X[x] = x * input.X / output.X
	}
	for y := range table.Y {
		table.Y[y] = y * input.Y / output.Y
	}
	return table
}

func lookupCenter(input, output Size) LookupTable {
	startX := input.X/2 - output.X/2 - 1
	startY := input.Y/2 - output.Y/2 - 1

	table := LookupTable{X: make([]int, output.X), Y: make([]int, output.Y)}
	for x := range table.X {
		table.X[x] = clamp(startX+x, input.X)
	}
	for y := range table.Y {
		table.Y[y] = clamp(startY+y, input.Y)
	}
	return table
}

func lookupCorners(input, output Size) LookupTable {
	table := LookupTable{X: make([]int, output.X), Y: make([]int, output.Y)}
	for x := range table.X {
		table.X[x] = cornerPosition(x, input.X, output.X)
	}
	for y := range table.Y {
		table.Y[y] = cornerPosition(y, input.Y, output.Y)
	}
	return table
}

// cornerPosition maps the outer thirds of the output onto the sensor edges
// and the middle third onto the sensor center.
func cornerPosition(current, input, output int) int {
	third := output / 3
	var pos int
	switch {
	case current < third:
		pos = current
	case current >= 2*third:
		pos = current + input - output
	default:
		pos = input/2 - output/2 + current
	}
	return clamp(pos, input)
}

func clamp(value, size int) int {
	return min(max(value, 0), size-1)
}
