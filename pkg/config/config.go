// Package config loads optional settings for the charlm command.
//
// Settings come from a single file named by the CHARLM_CONFIG environment
// variable or the --config flag. Files ending in .json or .jsonc are JSON
// with comments and trailing commas allowed; anything else is YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/joelsearcy/charlm-go/pkg/model"
)

// EnvVar names the environment variable holding the config file path
const EnvVar = "CHARLM_CONFIG"

var (
	// ErrInvalidLogLevel is returned for an unrecognized log_level
	ErrInvalidLogLevel = errors.New("config: invalid log level")

	// ErrInvalidLogFormat is returned for an unrecognized log_format
	ErrInvalidLogFormat = errors.New("config: invalid log format")
)

// Config holds the command's settings
type Config struct {
	// Seed is the fixed seed used when the mode token is not "random".
	// Default: 20
	Seed uint64 `yaml:"seed" json:"seed"`

	// LogLevel is one of debug, info, warn, error.
	// Default: warn
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFormat is auto, text or json. auto picks text for a terminal.
	// Default: auto
	LogFormat string `yaml:"log_format" json:"log_format"`

	// Corpus configures how a missing corpus file is fetched.
	Corpus CorpusConfig `yaml:"corpus" json:"corpus"`
}

// CorpusConfig configures corpus download
type CorpusConfig struct {
	// URL is downloaded to the corpus path when that file does not exist.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds the download.
	// Default: 60s
	Timeout string `yaml:"timeout" json:"timeout"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Seed:      model.FixedSeed,
		LogLevel:  "warn",
		LogFormat: "auto",
		Corpus: CorpusConfig{
			Timeout: "60s",
		},
	}
}

// Load loads configuration from the file named by CHARLM_CONFIG, or
// returns the defaults when the variable is unset
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := cfg.parse(data, filepath.Ext(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) parse(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// Validate checks enumerated fields
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	if _, err := c.DownloadTimeout(); err != nil {
		return err
	}
	return nil
}

// Level returns LogLevel as a slog level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return level, nil
}

// DownloadTimeout returns Corpus.Timeout as a duration
func (c *Config) DownloadTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Corpus.Timeout)
	if err != nil {
		return 0, fmt.Errorf("corpus timeout: %w", err)
	}
	return timeout, nil
}
