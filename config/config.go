package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration values that cannot be run. It is fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	maxDimension = 1024
	minTickMS    = 10
)

// Config represents the complete display configuration
type Config struct {
	Display  DisplayConfig  `yaml:"display"`
	Rotation RotationConfig `yaml:"rotation"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Race     RaceConfig     `yaml:"race"`
	Weather  WeatherConfig  `yaml:"weather"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`

	// LoadedFrom is the file the configuration was read from; empty for defaults.
	LoadedFrom string `yaml:"-"`
}

// DisplayConfig holds the fixed matrix geometry and render cadence.
type DisplayConfig struct {
	Rows         int `yaml:"rows"`
	Cols         int `yaml:"cols"`
	RenderTickMS int `yaml:"render_tick_ms"`
}

// RotationConfig controls which screen is active for a given wall time.
type RotationConfig struct {
	PeriodSeconds uint `yaml:"rotation_period_seconds"`
	SliceSeconds  uint `yaml:"slice_seconds"`
}

// RefreshConfig controls the slow data refresh cadence.
type RefreshConfig struct {
	IntervalSeconds       uint `yaml:"refresh_interval_seconds"`
	RequestTimeoutSeconds int  `yaml:"request_timeout_seconds"`
}

// RaceConfig points at an Ergast-compatible season schedule.
type RaceConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// WeatherConfig holds OpenWeatherMap settings. An empty API key leaves the
// weather screen showing "needs API key".
type WeatherConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	City    string `yaml:"city"`
	Units   string `yaml:"units"`
}

// OutputConfig selects the OutputSink implementation.
type OutputConfig struct {
	Mode string     `yaml:"mode"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains broker settings for the mqtt output mode.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"` // empty: generated per run
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Output modes.
const (
	OutputAuto     = "auto"
	OutputTerminal = "terminal"
	OutputHeadless = "headless"
	OutputMQTT     = "mqtt"
)

// Default returns the configuration used when no file is present. It mirrors
// a 64x32 panel redrawn twice a second with a 30 second three-screen rotation.
func Default() Config {
	return Config{
		Display: DisplayConfig{
			Rows:         32,
			Cols:         64,
			RenderTickMS: 500,
		},
		Rotation: RotationConfig{
			PeriodSeconds: 30,
			SliceSeconds:  10,
		},
		Refresh: RefreshConfig{
			IntervalSeconds:       600,
			RequestTimeoutSeconds: 10,
		},
		Race: RaceConfig{
			Enabled: true,
			URL:     "https://api.jolpi.ca/ergast/f1/current.json",
		},
		Weather: WeatherConfig{
			Enabled: true,
			URL:     "https://api.openweathermap.org/data/2.5/weather",
			Units:   "metric",
		},
		Output: OutputConfig{
			Mode: OutputAuto,
			MQTT: MQTTConfig{
				Port:  1883,
				Topic: "matrixboard",
			},
		},
		Logging: LoggingConfig{
			Dir:           "data/logs",
			RetentionDays: 7,
		},
	}
}

// Load loads configuration from a YAML file. Keys absent from the file keep
// their Default values; the result is normalized and validated.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.LoadedFrom = filename
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize trims strings and fills values that have an obvious fallback.
// Geometry and periods are left alone so Validate can reject them.
func (c *Config) normalize() {
	if c == nil {
		return
	}
	def := Default()
	c.Race.URL = strings.TrimSpace(c.Race.URL)
	if c.Race.URL == "" {
		c.Race.URL = def.Race.URL
	}
	c.Weather.URL = strings.TrimSpace(c.Weather.URL)
	if c.Weather.URL == "" {
		c.Weather.URL = def.Weather.URL
	}
	c.Weather.APIKey = strings.TrimSpace(c.Weather.APIKey)
	c.Weather.City = strings.TrimSpace(c.Weather.City)
	c.Weather.Units = strings.ToLower(strings.TrimSpace(c.Weather.Units))
	if c.Weather.Units == "" {
		c.Weather.Units = def.Weather.Units
	}
	c.Output.Mode = strings.ToLower(strings.TrimSpace(c.Output.Mode))
	if c.Output.Mode == "" {
		c.Output.Mode = def.Output.Mode
	}
	if c.Output.MQTT.Port <= 0 {
		c.Output.MQTT.Port = def.Output.MQTT.Port
	}
	if strings.TrimSpace(c.Output.MQTT.Topic) == "" {
		c.Output.MQTT.Topic = def.Output.MQTT.Topic
	}
	c.Output.MQTT.Topic = strings.TrimRight(strings.TrimSpace(c.Output.MQTT.Topic), "/")
	c.Output.MQTT.ClientID = strings.TrimSpace(c.Output.MQTT.ClientID)
	if c.Refresh.RequestTimeoutSeconds <= 0 {
		c.Refresh.RequestTimeoutSeconds = def.Refresh.RequestTimeoutSeconds
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = def.Logging.RetentionDays
	}
}

// Validate rejects configurations the render loop cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	d := c.Display
	if d.Rows <= 0 || d.Cols <= 0 || d.Rows > maxDimension || d.Cols > maxDimension {
		return fmt.Errorf("%w: display %dx%d out of range (1..%d)", ErrInvalid, d.Cols, d.Rows, maxDimension)
	}
	if d.RenderTickMS < minTickMS {
		return fmt.Errorf("%w: render_tick_ms=%d below %dms", ErrInvalid, d.RenderTickMS, minTickMS)
	}
	if c.Rotation.PeriodSeconds == 0 {
		return fmt.Errorf("%w: rotation_period_seconds must be positive", ErrInvalid)
	}
	if c.Rotation.SliceSeconds == 0 {
		return fmt.Errorf("%w: slice_seconds must be positive", ErrInvalid)
	}
	if c.Refresh.IntervalSeconds == 0 {
		return fmt.Errorf("%w: refresh_interval_seconds must be positive", ErrInvalid)
	}
	switch c.Output.Mode {
	case OutputAuto, OutputTerminal, OutputHeadless:
	case OutputMQTT:
		if strings.TrimSpace(c.Output.MQTT.Broker) == "" {
			return fmt.Errorf("%w: output.mqtt.broker is required for mqtt mode", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: output.mode %q not recognized", ErrInvalid, c.Output.Mode)
	}
	switch c.Weather.Units {
	case "metric", "imperial", "standard":
	default:
		return fmt.Errorf("%w: weather.units %q not recognized", ErrInvalid, c.Weather.Units)
	}
	return nil
}

// RenderTick returns the render cadence.
func (c *Config) RenderTick() time.Duration {
	return time.Duration(c.Display.RenderTickMS) * time.Millisecond
}

// RefreshInterval returns the data refresh cadence.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// RequestTimeout bounds a single provider call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Refresh.RequestTimeoutSeconds) * time.Second
}

// Print displays the configuration
func (c *Config) Print(w io.Writer) {
	source := c.LoadedFrom
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(w, "Config: %s\n", source)
	fmt.Fprintf(w, "Display: %dx%d, render every %dms\n", c.Display.Cols, c.Display.Rows, c.Display.RenderTickMS)
	fmt.Fprintf(w, "Rotation: %ds period, %ds slices\n", c.Rotation.PeriodSeconds, c.Rotation.SliceSeconds)
	// humanize.RelTime renders "10 minutes" style spans; trim its suffix words.
	span := humanize.RelTime(time.Time{}, time.Time{}.Add(c.RefreshInterval()), "", "")
	fmt.Fprintf(w, "Refresh: every %s (timeout %ds)\n", strings.TrimSpace(span), c.Refresh.RequestTimeoutSeconds)
	if c.Race.Enabled {
		fmt.Fprintf(w, "Race schedule: %s\n", c.Race.URL)
	}
	if c.Weather.Enabled {
		key := "not set"
		if c.Weather.APIKey != "" {
			key = "set"
		}
		fmt.Fprintf(w, "Weather: %s (city=%q units=%s key %s)\n", c.Weather.URL, c.Weather.City, c.Weather.Units, key)
	}
	fmt.Fprintf(w, "Output: %s\n", c.Output.Mode)
	if c.Output.Mode == OutputMQTT {
		fmt.Fprintf(w, "MQTT: %s:%d (topic: %s)\n", c.Output.MQTT.Broker, c.Output.MQTT.Port, c.Output.MQTT.Topic)
	}
	if c.Logging.Enabled {
		fmt.Fprintf(w, "Logging: %s (retention %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
}
