package gpio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AlverezYari/skyframe/internal/config"
	"github.com/AlverezYari/skyframe/internal/messages"
	"go.uber.org/zap"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Fields(string(data))
}

func countHigh(pattern []bool) int {
	n := 0
	for _, v := range pattern {
		if v {
			n++
		}
	}
	return n
}

func TestPatternPwm(t *testing.T) {
	tests := []struct {
		duty float64
		want int
	}{
		{0, 0},
		{0.25, 25},
		{0.333, 33},
		{0.996, 100},
		{1, 100},
	}
	for _, tt := range tests {
		pattern := PatternPwm(tt.duty)
		if len(pattern) != 100 {
			t.Fatalf("pattern length %d", len(pattern))
		}
		if got := countHigh(pattern); got != tt.want {
			t.Fatalf("duty %v: %d high slots, want %d", tt.duty, got, tt.want)
		}
		if tt.want > 0 && !pattern[0] {
			t.Fatalf("duty %v: high slots must lead the pattern", tt.duty)
		}
	}
}

func TestProgrammableOutputCyclesPattern(t *testing.T) {
	path := touch(t, t.TempDir(), "status")
	out := NewProgrammableOutput(path)
	out.SetPattern([]bool{true, false, false})

	for i := 0; i < 6; i++ {
		if err := out.Iterate(); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
	}
	got := strings.Join(readLines(t, path), "")
	if got != "001001" {
		t.Fatalf("written bits %q", got)
	}
}

func TestWriteOutputMissingFile(t *testing.T) {
	if err := WriteOutput(filepath.Join(t.TempDir(), "missing"), true); err == nil {
		t.Fatalf("expected error writing to a missing output")
	}
}

func TestManagerTriggerEdges(t *testing.T) {
	dir := t.TempDir()
	trigger := touch(t, dir, "trigger")

	var events []bool
	emit := func(msg messages.StateMessage) error {
		events = append(events, *msg.Trigger)
		return nil
	}
	m := NewManager(config.IoConfig{TriggerInput: trigger}, emit, zap.NewNop())

	steps := []string{"", "1\n", "1\n", "x", "0\n", "0\n", "1\n"}
	for _, value := range steps {
		if err := os.WriteFile(trigger, []byte(value), 0644); err != nil {
			t.Fatal(err)
		}
		if err := m.Periodic(); err != nil {
			t.Fatalf("Periodic: %v", err)
		}
	}

	want := []bool{false, true, false}
	if len(events) != len(want) {
		t.Fatalf("events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events %v, want %v", events, want)
		}
	}

	os.Remove(trigger)
	if err := m.Periodic(); err != nil || len(events) != 3 {
		t.Fatalf("read failure produced an event: %v %v", events, err)
	}
}

func TestManagerOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.IoConfig{
		ExposureStatus: touch(t, dir, "exposure"),
		HeatingPwm:     touch(t, dir, "heating"),
		MainStatus:     touch(t, dir, "status"),
	}
	m := NewManager(cfg, func(messages.StateMessage) error { return nil }, zap.NewNop())

	if err := m.Process(messages.IoMessage{Type: messages.IoSetExposureActive, Active: true}); err != nil {
		t.Fatal(err)
	}
	if got := readLines(t, cfg.ExposureStatus); len(got) != 1 || got[0] != "1" {
		t.Fatalf("exposure output %v", got)
	}

	if err := m.Process(messages.IoMessage{Type: messages.IoSetHeating, Heating: 0.5}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		_ = m.Periodic()
	}
	heating := readLines(t, cfg.HeatingPwm)
	high := 0
	for _, v := range heating {
		if v == "1" {
			high++
		}
	}
	if len(heating) != 100 || high != 50 {
		t.Fatalf("heating wrote %d lines, %d high", len(heating), high)
	}

	status := readLines(t, cfg.MainStatus)
	if len(status) != 100 {
		t.Fatalf("status wrote %d lines", len(status))
	}

	if err := m.Process(messages.IoMessage{Type: messages.IoSetStatus, Status: messages.StatusOff}); err != nil {
		t.Fatal(err)
	}
	_ = m.Periodic()
	status = readLines(t, cfg.MainStatus)
	if status[len(status)-1] != "0" {
		t.Fatalf("off status wrote %q", status[len(status)-1])
	}

	if err := m.Process(messages.IoMessage{Type: "blink"}); err == nil {
		t.Fatalf("expected error for unknown message")
	}
}

func TestManagerSkipsDisabledOutputs(t *testing.T) {
	m := NewManager(config.IoConfig{}, func(messages.StateMessage) error { return nil }, zap.NewNop())
	if err := m.Process(messages.IoMessage{Type: messages.IoSetExposureActive, Active: true}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Periodic(); err != nil {
			t.Fatal(err)
		}
	}
}
