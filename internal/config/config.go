// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// CameraConfig selects the imager and the initial shooting parameters.
type CameraConfig struct {
	// Driver is "demo" or "webcam".
	Driver      string     `json:"driver" yaml:"driver"`
	DeviceIndex int        `json:"device_index" yaml:"device_index"`
	Gain        uint16     `json:"gain" yaml:"gain"`
	Time        float64    `json:"time" yaml:"time"`
	Temperature float64    `json:"temperature" yaml:"temperature"`
	RenderSize  frame.Size `json:"render_size" yaml:"render_size"`
}

type StorageConfig struct {
	BasePath  string `json:"base_path" yaml:"base_path"`
	Directory string `json:"directory" yaml:"directory"`
}

// IoConfig holds sysfs-style file paths. An empty path disables that line.
type IoConfig struct {
	TriggerInput   string `json:"trigger_input" yaml:"trigger_input"`
	ExposureStatus string `json:"exposure_status" yaml:"exposure_status"`
	HeatingPwm     string `json:"heating_pwm" yaml:"heating_pwm"`
	MainStatus     string `json:"main_status" yaml:"main_status"`
}

// MqttConfig enables the MQTT side channel when Broker is set.
type MqttConfig struct {
	Broker      string `json:"broker" yaml:"broker"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	ClientID    string `json:"client_id" yaml:"client_id"`
}

type AppConfig struct {
	ServerPort string        `json:"server_port" yaml:"server_port"`
	ServerIP   string        `json:"server_ip" yaml:"server_ip"`
	LogFile    string        `json:"log_file" yaml:"log_file"`
	Camera     CameraConfig  `json:"camera" yaml:"camera"`
	Storage    StorageConfig `json:"storage" yaml:"storage"`
	Io         IoConfig      `json:"io" yaml:"io"`
	Mqtt       MqttConfig    `json:"mqtt" yaml:"mqtt"`
}

// Default config
func defaultConfig() *AppConfig {
	return &AppConfig{
		ServerIP:   "0.0.0.0",
		ServerPort: "8080",
		LogFile:    "skyframe.log",
		Camera: CameraConfig{
			Driver:      "demo",
			DeviceIndex: -1,
			Gain:        0,
			Time:        1.0,
			Temperature: 20.0,
			RenderSize:  frame.NewSize(900, 600),
		},
		Storage: StorageConfig{
			BasePath:  "images",
			Directory: "default",
		},
		Mqtt: MqttConfig{
			TopicPrefix: "skyframe",
		},
	}
}

func Default() *AppConfig {
	return defaultConfig()
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return c.ServerIP + ":" + c.ServerPort
}

func (c *AppConfig) Validate() error {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: server_port %q", ErrInvalid, c.ServerPort)
	}
	switch c.Camera.Driver {
	case "demo", "webcam":
	default:
		return fmt.Errorf("%w: camera driver %q", ErrInvalid, c.Camera.Driver)
	}
	if c.Camera.RenderSize.X <= 0 || c.Camera.RenderSize.Y <= 0 {
		return fmt.Errorf("%w: render_size %dx%d", ErrInvalid, c.Camera.RenderSize.X, c.Camera.RenderSize.Y)
	}
	if c.Camera.Time < 0 {
		return fmt.Errorf("%w: negative exposure time", ErrInvalid)
	}
	if c.Storage.BasePath == "" {
		return fmt.Errorf("%w: storage base_path is empty", ErrInvalid)
	}
	return nil
}

// getConfigPath ensures the config directory exists and returns the default
// config file path under ~/.config/skyframe.
func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "skyframe")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the default config.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		p, err := getConfigPath()
		if err != nil {
			return nil, fmt.Errorf("error getting config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Load the default config to fill in missing fields
	config := defaultConfig()
	if err := decode(path, data, config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(path string, data []byte, config *AppConfig) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(jsonc.ToJSON(data), config)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the config to path, or the default location when path is empty.
func Save(config *AppConfig, path string) error {
	if path == "" {
		p, err := getConfigPath()
		if err != nil {
			return fmt.Errorf("error getting config path: %w", err)
		}
		path = p
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// WriteDefault writes the default config to path without overwriting an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	return Save(defaultConfig(), path)
}
