package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadFromDir.
const FileName = "widgetbridge.yaml"

// Config represents the widgetbridge configuration
type Config struct {
	Title     string          `yaml:"title"`
	Server    ServerConfig    `yaml:"server"`
	Component ComponentConfig `yaml:"component"`
	Widgets   WidgetsConfig   `yaml:"widgets"`
	Features  FeaturesConfig  `yaml:"features"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig configures the host page server
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// ComponentConfig declares the frontend component that hosts widgets
type ComponentConfig struct {
	Name     string       `yaml:"name"`               // Component name (default: streamlit_anywidget)
	URL      string       `yaml:"url,omitempty"`      // Externally served frontend (default: http://localhost:3001)
	Embedded bool         `yaml:"embedded,omitempty"` // Serve the bundled frontend in-process instead of URL
	Probe    *ProbeConfig `yaml:"probe,omitempty"`
}

// ProbeConfig configures the startup health check of the component URL
type ProbeConfig struct {
	Timeout    string `yaml:"timeout,omitempty"`     // Per-attempt timeout (default: 2s)
	MaxRetries int    `yaml:"max_retries,omitempty"` // Retry attempts after the first (default: 3)
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial backoff delay (default: 200ms)
}

// WidgetsConfig configures where widget ESM and CSS sources come from
type WidgetsConfig struct {
	Dir string `yaml:"dir,omitempty"` // Directory overriding the bundled sources (watched with hot_reload)
}

// FeaturesConfig toggles optional server features
type FeaturesConfig struct {
	HotReload   bool `yaml:"hot_reload"`
	Compression bool `yaml:"compression"`
}

// RateLimitConfig limits inbound events per session
type RateLimitConfig struct {
	EventsPerSecond float64 `yaml:"events_per_second,omitempty"` // Default: 20
	Burst           int     `yaml:"burst,omitempty"`             // Default: 40
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "AnyWidget in Streamlit Demo",
		Server: ServerConfig{
			Host:  "localhost",
			Port:  8501,
			Debug: false,
		},
		Component: ComponentConfig{
			Name: "streamlit_anywidget",
			URL:  "http://localhost:3001",
		},
		Features: FeaturesConfig{
			HotReload:   false,
			Compression: true,
		},
	}
}

// Addr returns the host:port the server listens on
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetProbeTimeout returns the per-attempt probe timeout (default: 2s)
func (c ComponentConfig) GetProbeTimeout() time.Duration {
	if c.Probe == nil || c.Probe.Timeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(c.Probe.Timeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetProbeMaxRetries returns the probe retry count (default: 3, set to 0 to disable retries)
func (c ComponentConfig) GetProbeMaxRetries() int {
	if c.Probe == nil {
		return 3
	}
	if c.Probe.MaxRetries < 0 {
		return 3
	}
	return c.Probe.MaxRetries
}

// GetProbeBaseDelay returns the initial probe backoff delay (default: 200ms)
func (c ComponentConfig) GetProbeBaseDelay() time.Duration {
	if c.Probe == nil || c.Probe.BaseDelay == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Probe.BaseDelay)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetEventsPerSecond returns the per-session event rate (default: 20)
func (c RateLimitConfig) GetEventsPerSecond() float64 {
	if c.EventsPerSecond <= 0 {
		return 20
	}
	return c.EventsPerSecond
}

// GetBurst returns the per-session event burst (default: 40)
func (c RateLimitConfig) GetBurst() int {
	if c.Burst <= 0 {
		return 40
	}
	return c.Burst
}

// Validate checks settings that have no sensible fallback
func (c *Config) Validate() error {
	if c.Component.Name == "" {
		return fmt.Errorf("component.name is required")
	}
	if !c.Component.Embedded && c.Component.URL == "" {
		return fmt.Errorf("component.url is required unless component.embedded is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// LoadFromDir looks for widgetbridge.yaml in the given directory
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
