// Package config provides configuration loading for the slide tile server.
// It handles loading configuration from YAML or TOML files, applies
// environment overrides and provides default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/slide-tiles-mcp/internal/imaging"
	"github.com/ironsheep/slide-tiles-mcp/internal/logging"
)

// Environment variables read by FromEnv.
const (
	EnvConfig   = "SLIDE_MCP_CONFIG"
	EnvLogLevel = "SLIDE_MCP_LOG_LEVEL"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	// DeepZoom holds the tiling defaults used when a request leaves them out.
	DeepZoom struct {
		// TileSize is the tile edge length in pixels, excluding overlap.
		TileSize int `yaml:"tileSize" toml:"tile_size"`

		// Overlap is the number of extra pixels on interior tile edges.
		Overlap int `yaml:"overlap" toml:"overlap"`

		// LimitBounds restricts the pyramid to the slide's non-empty region.
		LimitBounds bool `yaml:"limitBounds" toml:"limit_bounds"`

		// Format is the tile image format: jpeg, png or bmp.
		Format string `yaml:"format" toml:"format"`

		// Quality is the JPEG quality, 1 to 100.
		Quality int `yaml:"quality" toml:"quality"`
	} `yaml:"deepzoom" toml:"deepzoom"`

	// Export parameters
	Export struct {
		// Workers is the number of tiles encoded in parallel.
		Workers int `yaml:"workers" toml:"workers"`
	} `yaml:"export" toml:"export"`

	// OCR parameters
	OCR struct {
		// Language is the Tesseract language code used for label text.
		Language string `yaml:"language" toml:"language"`
	} `yaml:"ocr" toml:"ocr"`

	// Log parameters
	Log struct {
		// Level is one of debug, info, warning, error.
		Level string `yaml:"level" toml:"level"`

		// File enables a rotating log file in addition to stderr.
		File string `yaml:"file" toml:"file"`

		// MaxSize is the log file size in megabytes before rotation.
		MaxSize int `yaml:"maxSize" toml:"max_log_size"`

		// MaxAge is the number of days rotated files are kept.
		MaxAge int `yaml:"maxAge" toml:"max_log_age"`
	} `yaml:"log" toml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.DeepZoom.TileSize = 254
	cfg.DeepZoom.Overlap = 1
	cfg.DeepZoom.LimitBounds = true
	cfg.DeepZoom.Format = imaging.FormatJPEG
	cfg.DeepZoom.Quality = imaging.DefaultQuality

	cfg.Export.Workers = runtime.NumCPU()

	cfg.OCR.Language = "eng"

	cfg.Log.Level = "info"
	cfg.Log.MaxSize = 100
	cfg.Log.MaxAge = 28

	return cfg
}

// Load loads configuration from a file.
//
// Files ending in ".toml" are decoded as TOML and anything else as YAML.
// Keys missing from the file keep their default values. If the file doesn't
// exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// FromEnv loads the file named by SLIDE_MCP_CONFIG, if set, then applies
// SLIDE_MCP_LOG_LEVEL. The result is validated.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv(EnvConfig); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks value ranges and normalizes the tile format name.
func (c *Config) Validate() error {
	if c.DeepZoom.TileSize <= 0 {
		return fmt.Errorf("%w: deepzoom tile size %d must be positive", ErrInvalid, c.DeepZoom.TileSize)
	}
	if c.DeepZoom.Overlap < 0 {
		return fmt.Errorf("%w: deepzoom overlap %d must not be negative", ErrInvalid, c.DeepZoom.Overlap)
	}
	if c.DeepZoom.Quality < 1 || c.DeepZoom.Quality > 100 {
		return fmt.Errorf("%w: deepzoom quality %d not in 1..100", ErrInvalid, c.DeepZoom.Quality)
	}
	format, err := imaging.NormalizeFormat(c.DeepZoom.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	c.DeepZoom.Format = format

	if c.Export.Workers <= 0 {
		return fmt.Errorf("%w: export workers %d must be positive", ErrInvalid, c.Export.Workers)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
