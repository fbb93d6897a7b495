// Package config loads the provider configuration for opendelta.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opendelta/opendelta/internal/stream"
)

// Config defines how opendelta connects to a streaming text-generation
// gateway and how decoded streams are interpreted.
type Config struct {
	// APIBaseURL is the base URL of the upstream gateway.
	APIBaseURL string `json:"api_base_url"`
	// APIKey authenticates requests; header placement depends on dialect.
	APIKey string `json:"api_key"`
	// Dialect selects the stream payload schema (openai or anthropic).
	Dialect string `json:"dialect"`
	// DefaultModel is used when no CLI override is provided.
	DefaultModel string `json:"default_model"`
	// ModelAliases maps friendly names (e.g. fast) to provider model ids.
	ModelAliases map[string]string `json:"model_aliases"`
	// TimeoutMS configures the request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms"`
	// Reasoning configures the reasoning block delimiters.
	Reasoning ReasoningConfig `json:"reasoning"`
	// Logging configures diagnostic output.
	Logging LoggingConfig `json:"logging"`
}

// ReasoningConfig holds the literal marker pair delimiting reasoning blocks
// inside the text stream.
type ReasoningConfig struct {
	// OpenMarker starts a reasoning block; empty selects <think>.
	OpenMarker string `json:"open_marker"`
	// CloseMarker ends a reasoning block; empty selects </think>.
	CloseMarker string `json:"close_marker"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `json:"level"`
	// File appends JSON log lines to a path instead of stderr.
	File string `json:"file"`
}

var (
	// ErrConfigMissing is returned when the config file does not exist.
	ErrConfigMissing = errors.New("config missing")
	// ErrConfigInvalid is returned when required fields are missing or bad.
	ErrConfigInvalid = errors.New("config invalid")
)

// Path returns the default config path under the user's home directory.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".opendelta", "config.json"), nil
}

// Load reads and validates the config. An empty path selects the default
// location.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// validate checks required fields and the dialect selector.
func (c *Config) validate() error {
	if c.APIBaseURL == "" || c.DefaultModel == "" {
		return fmt.Errorf("%w: api_base_url and default_model are required", ErrConfigInvalid)
	}
	if c.Dialect != "" && !stream.Dialect(c.Dialect).Valid() {
		return fmt.Errorf("%w: unknown dialect %q", ErrConfigInvalid, c.Dialect)
	}
	return nil
}

// applyDefaults fills optional fields.
func (c *Config) applyDefaults() {
	if c.Dialect == "" {
		c.Dialect = string(stream.DialectOpenAI)
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 600000
	}
	if c.ModelAliases == nil {
		c.ModelAliases = make(map[string]string)
	}
}

// ResolveModel returns the model for a run, honoring CLI overrides and
// aliases.
func (c *Config) ResolveModel(cliModel string) string {
	name := cliModel
	if name == "" {
		name = c.DefaultModel
	}
	if aliased, ok := c.ModelAliases[name]; ok {
		return aliased
	}
	return name
}
