package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8080" || cfg.Camera.Driver != "demo" || cfg.Storage.BasePath != "images" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadJSONWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// observatory port
		"server_port": "9000",
		"camera": {"driver": "webcam", "device_index": 1,},
		/* gpio */
		"io": {"trigger_input": "/sys/class/gpio/gpio17/value"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9000" || cfg.Camera.Driver != "webcam" || cfg.Camera.DeviceIndex != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Io.TriggerInput != "/sys/class/gpio/gpio17/value" {
		t.Fatalf("io not loaded: %+v", cfg.Io)
	}
	// untouched fields keep their defaults
	if cfg.Camera.RenderSize.X != 900 || cfg.Storage.Directory != "default" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server_port: "8081"
storage:
  base_path: /data/frames
camera:
  render_size:
    width: 640
    height: 480
mqtt:
  broker: tcp://localhost:1883
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8081" || cfg.Storage.BasePath != "/data/frames" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Camera.RenderSize.X != 640 || cfg.Camera.RenderSize.Y != 480 {
		t.Fatalf("render size %+v", cfg.Camera.RenderSize)
	}
	if cfg.Mqtt.Broker != "tcp://localhost:1883" || cfg.Mqtt.TopicPrefix != "skyframe" {
		t.Fatalf("mqtt %+v", cfg.Mqtt)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"bad port", func(c *AppConfig) { c.ServerPort = "http" }},
		{"port out of range", func(c *AppConfig) { c.ServerPort = "70000" }},
		{"unknown driver", func(c *AppConfig) { c.Camera.Driver = "moravian" }},
		{"zero render size", func(c *AppConfig) { c.Camera.RenderSize.X = 0 }},
		{"negative time", func(c *AppConfig) { c.Camera.Time = -1 }},
		{"empty base path", func(c *AppConfig) { c.Storage.BasePath = "" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWriteDefaultAndReload(t *testing.T) {
	for _, name := range []string{"skyframe.json", "skyframe.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteDefault(path); err != nil {
			t.Fatalf("WriteDefault(%s): %v", name, err)
		}
		if err := WriteDefault(path); err == nil {
			t.Fatalf("WriteDefault(%s) overwrote an existing file", name)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if *cfg != *Default() {
			t.Fatalf("%s: reloaded config differs: %+v", name, cfg)
		}
	}
}
