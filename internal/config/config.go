// Package config loads aac-checker settings from a YAML file, with the
// geocoder endpoint overridable from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv
const (
	EnvNominatimURL       = "AAC_NOMINATIM_URL"
	EnvNominatimUserAgent = "AAC_NOMINATIM_USER_AGENT"
	EnvNominatimEmail     = "AAC_NOMINATIM_EMAIL"
)

// Config holds the application configuration.
type Config struct {
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Resolver ResolverConfig `yaml:"resolver"`
	Simplify SimplifyConfig `yaml:"simplify"`
	Region   RegionConfig   `yaml:"region"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Log      LogConfig      `yaml:"log"`
}

// GeocoderConfig holds Nominatim settings.
type GeocoderConfig struct {
	URL          string   `yaml:"url"`
	UserAgent    string   `yaml:"user_agent"`
	Email        string   `yaml:"email"`
	CountryCodes string   `yaml:"country_codes"`
	Delay        Duration `yaml:"delay"`   // Wait before every request
	Timeout      Duration `yaml:"timeout"` // HTTP timeout
}

// ResolverConfig holds containment tolerances.
type ResolverConfig struct {
	BufferMeters       float64 `yaml:"buffer_meters"`
	PlainBufferDegrees float64 `yaml:"plain_buffer_degrees"`
}

// SimplifyConfig holds display simplification settings.
type SimplifyConfig struct {
	ThresholdFeatures int     `yaml:"threshold_features"`
	FineTolerance     float64 `yaml:"fine_tolerance"`
	CoarseTolerance   float64 `yaml:"coarse_tolerance"`
}

// RegionConfig holds the default region filter.
type RegionConfig struct {
	Default string `yaml:"default"`
	Field   string `yaml:"field"` // Explicit region attribute, auto-detected when empty
}

// DatasetConfig holds dataset reading settings.
type DatasetConfig struct {
	Path  string `yaml:"path"`  // Dataset loaded at start, optional
	Layer string `yaml:"layer"` // GeoPackage layer
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // Log file used by the terminal UI
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Geocoder: GeocoderConfig{
			URL:       "https://nominatim.openstreetmap.org/search",
			UserAgent: "aac_checker",
			Delay:     Duration(1 * time.Second),
			Timeout:   Duration(10 * time.Second),
		},
		Resolver: ResolverConfig{
			BufferMeters:       100,
			PlainBufferDegrees: 0.0001,
		},
		Simplify: SimplifyConfig{
			ThresholdFeatures: 500,
			FineTolerance:     0.001,
			CoarseTolerance:   0.003,
		},
		Region: RegionConfig{
			Default: "Occitanie",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join("logs", "aac-checker.log"),
		},
	}
}

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the resolver or simplifier cannot use.
func (c *Config) Validate() error {
	if c.Resolver.BufferMeters < 0 {
		return fmt.Errorf("resolver.buffer_meters must not be negative, got %v", c.Resolver.BufferMeters)
	}
	if c.Resolver.PlainBufferDegrees < 0 {
		return fmt.Errorf("resolver.plain_buffer_degrees must not be negative, got %v", c.Resolver.PlainBufferDegrees)
	}
	if c.Simplify.FineTolerance < 0 || c.Simplify.CoarseTolerance < 0 {
		return errors.New("simplify tolerances must not be negative")
	}
	if c.Geocoder.Delay < 0 {
		return errors.New("geocoder.delay must not be negative")
	}
	return nil
}

// ApplyEnv loads the given .env files (missing ones are ignored) and lets
// the AAC_NOMINATIM_* variables override the geocoder settings.
func (c *Config) ApplyEnv(envFiles ...string) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	if v := strings.TrimSpace(os.Getenv(EnvNominatimURL)); v != "" {
		c.Geocoder.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNominatimUserAgent)); v != "" {
		c.Geocoder.UserAgent = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNominatimEmail)); v != "" {
		c.Geocoder.Email = v
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# aac-checker configuration
# Durations use Go syntax: 500ms, 1s, 2m
# Environment overrides: AAC_NOMINATIM_URL, AAC_NOMINATIM_USER_AGENT, AAC_NOMINATIM_EMAIL

`)
	data = append(header, data...)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Duration wraps time.Duration to read and write it as a string in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
