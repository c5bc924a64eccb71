package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/evcert/dno"
	"github.com/timzifer/evcert/validation"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Duration.String() + `"`), nil
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	URL     string            `yaml:"url" json:"url"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level" json:"level"`
	Format string     `yaml:"format,omitempty" json:"format"`
	Loki   LokiConfig `yaml:"loki" json:"loki"`
	// Components overrides the level per component ("engine", "http",
	// "mqtt", "reload").
	Components map[string]string `yaml:"components,omitempty" json:"components"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider,omitempty" json:"provider"`
}

// ServerConfig configures the HTTP evaluation API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// MQTTConfig configures the MQTT evaluation bridge.
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Broker         string   `yaml:"broker" json:"broker"`
	ClientID       string   `yaml:"client_id,omitempty" json:"client_id"`
	Username       string   `yaml:"username,omitempty" json:"username"`
	Password       string   `yaml:"password,omitempty" json:"password"`
	TopicPrefix    string   `yaml:"topic_prefix,omitempty" json:"topic_prefix"`
	QoS            int      `yaml:"qos,omitempty" json:"qos"`
	KeepAlive      Duration `yaml:"keep_alive,omitempty" json:"keep_alive"`
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout"`
}

// DNOConfig holds the notification thresholds per supply configuration.
type DNOConfig struct {
	SinglePhase dno.Thresholds `yaml:"single_phase" json:"single_phase"`
	ThreePhase  dno.Thresholds `yaml:"three_phase" json:"three_phase"`
}

// RulesConfig tunes the compliance rules.
type RulesConfig struct {
	DNO                   DNOConfig                `yaml:"dno" json:"dno"`
	Limits                validation.Limits        `yaml:"limits" json:"limits"`
	Warnings              []validation.WarningRule `yaml:"warnings,omitempty" json:"warnings"`
	TemperatureCorrection *bool                    `yaml:"temperature_correction,omitempty" json:"temperature_correction"`
}

// ApplyTemperatureCorrection reports whether derived Zs values are raised to
// conductor operating temperature. Enabled unless explicitly switched off.
func (r RulesConfig) ApplyTemperatureCorrection() bool {
	return r.TemperatureCorrection == nil || *r.TemperatureCorrection
}

// ChargersConfig lists extra catalogue files merged into the built-in one.
type ChargersConfig struct {
	Catalogues []string `yaml:"catalogues,omitempty" json:"catalogues"`
}

// Config is the root configuration structure for the service.
type Config struct {
	Name      string          `yaml:"name,omitempty" json:"name"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Rules     RulesConfig     `yaml:"rules" json:"rules"`
	Chargers  ChargersConfig  `yaml:"chargers" json:"chargers"`
	HotReload bool            `yaml:"hot_reload,omitempty" json:"hot_reload"`
	Source    string          `yaml:"-" json:"-"`
}

// Default returns a configuration with every rule at its regulatory value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, decodes and validates the configuration file from disk.
// Relative catalogue paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	cfg.Source = abs
	baseDir := filepath.Dir(abs)
	for i, catalogue := range cfg.Chargers.Catalogues {
		if !filepath.IsAbs(catalogue) {
			cfg.Chargers.Catalogues[i] = filepath.Join(baseDir, catalogue)
		}
	}
	return cfg, nil
}

// Parse decodes a YAML document, fills defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "evcert"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "evcert"
	}
	if c.MQTT.ConnectTimeout.Duration <= 0 {
		c.MQTT.ConnectTimeout.Duration = 30 * time.Second
	}
	if c.MQTT.KeepAlive.Duration <= 0 {
		c.MQTT.KeepAlive.Duration = 30 * time.Second
	}
	if c.Rules.DNO.SinglePhase == (dno.Thresholds{}) {
		c.Rules.DNO.SinglePhase = dno.DefaultSinglePhase
	}
	if c.Rules.DNO.ThreePhase == (dno.Thresholds{}) {
		c.Rules.DNO.ThreePhase = dno.DefaultThreePhase
	}
	limits := validation.DefaultLimits()
	if c.Rules.Limits.InsulationMinMOhm == 0 {
		c.Rules.Limits.InsulationMinMOhm = limits.InsulationMinMOhm
	}
	if c.Rules.Limits.RCDTripMaxMs == 0 {
		c.Rules.Limits.RCDTripMaxMs = limits.RCDTripMaxMs
	}
	if c.Rules.Limits.RCDTripMax5xMs == 0 {
		c.Rules.Limits.RCDTripMax5xMs = limits.RCDTripMax5xMs
	}
}
