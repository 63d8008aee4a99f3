package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file read by Load.
const MaxConfigFileBytes = 1 << 20

// Highest BCM pin number on the 40-pin header.
const maxBCMPin = 27

// PIRConfig describes the motion sensor input.
type PIRConfig struct {
	Pin        int  `yaml:"pin"`         // BCM pin, default 16
	DebounceMs int  `yaml:"debounce_ms"` // stable time before an edge counts (default 50)
	PollMs     int  `yaml:"poll_ms"`     // sampling period (default 5)
	PullDown   bool `yaml:"pull_down"`   // enable the internal pull-down
}

// LEDConfig describes the status indicator.
type LEDConfig struct {
	Pin       int  `yaml:"pin"`        // BCM pin, default 5
	ActiveLow bool `yaml:"active_low"` // LED lit when the pin is LOW
}

// CameraConfig describes how stills are taken.
// Type selects a concrete implementation ("command" or "mock").
type CameraConfig struct {
	Type       string   `yaml:"type"`
	Command    string   `yaml:"command"` // still-capture binary (default rpicam-still)
	Args       []string `yaml:"args"`    // replaces the default arguments when set
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	NamePrefix string   `yaml:"name_prefix"` // object name prefix
	SaveDir    string   `yaml:"save_dir"`    // optional local copy of every capture
}

// StoreConfig describes the remote image store.
// Type selects "minio" (any S3 endpoint) or "memory".
type StoreConfig struct {
	Type          string `yaml:"type"`
	Endpoint      string `yaml:"endpoint" env:"PIRSNAP_STORE_ENDPOINT"`
	Region        string `yaml:"region" env:"PIRSNAP_STORE_REGION"`
	Bucket        string `yaml:"bucket" env:"PIRSNAP_STORE_BUCKET"`
	AccessKey     string `yaml:"access_key" env:"PIRSNAP_STORE_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"PIRSNAP_STORE_SECRET_KEY"`
	UseSSL        bool   `yaml:"use_ssl" env:"PIRSNAP_STORE_USE_SSL"`
	PublicBaseURL string `yaml:"public_base_url" env:"PIRSNAP_STORE_PUBLIC_BASE_URL"`
}

// PipelineConfig bounds the capture and upload stages. 0 disables a bound.
type PipelineConfig struct {
	CaptureTimeoutMs int `yaml:"capture_timeout_ms"`
	UploadTimeoutMs  int `yaml:"upload_timeout_ms"`
}

// MQTTConfig is optional: status messages are published when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"PIRSNAP_MQTT_BROKER"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username" env:"PIRSNAP_MQTT_USERNAME"`
	Password string `yaml:"password" env:"PIRSNAP_MQTT_PASSWORD"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LogFile    string `yaml:"log_file"`    // optional rotating log file
}

// Config aggregates all application configuration.
type Config struct {
	PIR      PIRConfig      `yaml:"pir"`
	LED      LEDConfig      `yaml:"led"`
	Camera   CameraConfig   `yaml:"camera"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath rejects paths that are not a .yaml file directly
// inside a configs/ directory, or that climb out of it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies environment overrides and defaults,
// and returns the validated configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Credentials usually come from the environment.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PIR.Pin == 0 {
		c.PIR.Pin = 16
	}
	if c.PIR.DebounceMs <= 0 {
		c.PIR.DebounceMs = 50
	}
	if c.PIR.PollMs <= 0 {
		c.PIR.PollMs = 5
	}
	if c.LED.Pin == 0 {
		c.LED.Pin = 5
	}

	if c.Camera.Command == "" {
		c.Camera.Command = "rpicam-still"
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = 1280
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = 720
	}
	if c.Camera.NamePrefix == "" {
		c.Camera.NamePrefix = "RaspPiSecurityPic"
	}

	if c.Store.Type == "" {
		c.Store.Type = "minio"
	}

	// Negative disables the bound; 0 means "use the default".
	if c.Pipeline.CaptureTimeoutMs == 0 {
		c.Pipeline.CaptureTimeoutMs = 15000
	}
	if c.Pipeline.UploadTimeoutMs == 0 {
		c.Pipeline.UploadTimeoutMs = 60000
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "pirsnap"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "pirsnap"
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validPin("pir.pin", c.PIR.Pin); err != nil {
		return err
	}
	if err := validPin("led.pin", c.LED.Pin); err != nil {
		return err
	}
	if c.PIR.Pin == c.LED.Pin {
		return fmt.Errorf("pir.pin and led.pin must differ, both are %d", c.PIR.Pin)
	}

	switch c.Camera.Type {
	case "command", "mock":
	case "":
		return fmt.Errorf("camera.type is required")
	default:
		return fmt.Errorf("camera.type %q is not supported (command, mock)", c.Camera.Type)
	}

	switch c.Store.Type {
	case "minio":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store.endpoint is required for store.type minio")
		}
		if c.Store.Bucket == "" {
			return fmt.Errorf("store.bucket is required for store.type minio")
		}
	case "memory":
	default:
		return fmt.Errorf("store.type %q is not supported (minio, memory)", c.Store.Type)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func validPin(name string, pin int) error {
	if pin < 0 || pin > maxBCMPin {
		return fmt.Errorf("%s must be a BCM pin between 0 and %d, got %d", name, maxBCMPin, pin)
	}
	return nil
}

// Debounce returns the PIR debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.PIR.DebounceMs) * time.Millisecond
}

// PollInterval returns the PIR sampling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PIR.PollMs) * time.Millisecond
}

// CaptureTimeout returns the capture stage bound (0 = unbounded).
func (c *Config) CaptureTimeout() time.Duration {
	return msOrUnbounded(c.Pipeline.CaptureTimeoutMs)
}

// UploadTimeout returns the upload stage bound (0 = unbounded).
func (c *Config) UploadTimeout() time.Duration {
	return msOrUnbounded(c.Pipeline.UploadTimeoutMs)
}

func msOrUnbounded(ms int) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
