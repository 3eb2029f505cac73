package session

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// RecordingConfig controls the optional bounded capture window.
type RecordingConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	Duration time.Duration `yaml:"duration"`
}

// Config is the session configuration surface. Defaults match the EMG
// eval-kit the protocol was built against; everything is overridable from
// a YAML file or CLI flags.
type Config struct {
	// DeviceName filters discovery by advertised local name.
	DeviceName string `yaml:"device_name" default:"CC0479"`

	// GATT endpoints: TX carries device-to-host notifications, RX accepts
	// host-to-device writes.
	ServiceUUID string `yaml:"service_uuid" default:"bd505a55-c892-4a2d-9fd0-4ed48997e555"`
	TXCharUUID  string `yaml:"tx_char_uuid" default:"799846a2-44c5-44ca-b620-41a48ac4459c"`
	RXCharUUID  string `yaml:"rx_char_uuid" default:"d6b87f3a-2905-463f-8e5a-40d3dce8c186"`

	ScanTimeout    time.Duration `yaml:"scan_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Heartbeat cadence. Interval and SoftTimeout are equal by default to
	// avoid beat storms; that is policy, not a requirement.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SoftTimeout       time.Duration `yaml:"soft_timeout"`
	HardTimeout       time.Duration `yaml:"hard_timeout"`

	Recording RecordingConfig `yaml:"recording"`
}

// DefaultConfig returns a Config populated with the eval-kit defaults.
// String defaults come from the struct tags, durations are set here.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	cfg.ScanTimeout = 10 * time.Second
	cfg.ConnectTimeout = 30 * time.Second
	cfg.HeartbeatInterval = 2 * time.Second
	cfg.SoftTimeout = 2 * time.Second
	cfg.HardTimeout = 5 * time.Second
	cfg.Recording.Duration = 30 * time.Second
	return cfg
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the session cannot run with.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if c.ServiceUUID == "" || c.TXCharUUID == "" || c.RXCharUUID == "" {
		return fmt.Errorf("service, tx, and rx UUIDs must all be set")
	}
	if c.SoftTimeout <= 0 {
		return fmt.Errorf("soft_timeout must be positive, got %v", c.SoftTimeout)
	}
	if c.HardTimeout <= 0 {
		return fmt.Errorf("hard_timeout must be positive, got %v", c.HardTimeout)
	}
	if c.HardTimeout < c.SoftTimeout {
		return fmt.Errorf("hard_timeout %v must not be shorter than soft_timeout %v", c.HardTimeout, c.SoftTimeout)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat_interval must not be negative, got %v", c.HeartbeatInterval)
	}
	if c.Recording.Enabled {
		if c.Recording.Path == "" {
			return fmt.Errorf("recording.path must be set when recording is enabled")
		}
		if c.Recording.Duration <= 0 {
			return fmt.Errorf("recording.duration must be positive, got %v", c.Recording.Duration)
		}
	}
	return nil
}
