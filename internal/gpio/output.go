// internal/gpio/output.go
package gpio

import (
	"fmt"
	"math"
	"os"
)

const pwmSlots = 100

// WriteOutput appends a single "0" or "1" line to path.
func WriteOutput(path string, value bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open output %s: %w", path, err)
	}
	defer f.Close()

	line := "0\n"
	if value {
		line = "1\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	return nil
}

// PatternPwm returns a 100 slot pattern with round(duty*100) leading high slots.
func PatternPwm(duty float64) []bool {
	pivot := int(math.Round(duty * pwmSlots))
	pattern := make([]bool, pwmSlots)
	for i := range pattern {
		pattern[i] = i < pivot
	}
	return pattern
}

func StatusHealthy() []bool {
	return bits(0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1)
}

func StatusError() []bool {
	return bits(1, 0)
}

func StatusOff() []bool {
	return bits(0)
}

func bits(values ...int) []bool {
	pattern := make([]bool, len(values))
	for i, v := range values {
		pattern[i] = v > 0
	}
	return pattern
}

// ProgrammableOutput replays a bit pattern on an output file, one bit per
// Iterate call.
type ProgrammableOutput struct {
	path     string
	pattern  []bool
	position int
}

func NewProgrammableOutput(path string) *ProgrammableOutput {
	return &ProgrammableOutput{path: path, pattern: []bool{false}}
}

func (o *ProgrammableOutput) SetPattern(pattern []bool) {
	o.pattern = pattern
}

// Iterate advances the pattern and writes the current bit. Outputs without a
// path are skipped.
func (o *ProgrammableOutput) Iterate() error {
	if len(o.pattern) == 0 {
		return nil
	}
	o.position++
	if o.position >= len(o.pattern) {
		o.position = 0
	}
	if o.path == "" {
		return nil
	}
	return WriteOutput(o.path, o.pattern[o.position])
}
