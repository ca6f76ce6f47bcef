// Package config loads casedesk settings from a YAML file, a .env file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/daviddao/casedesk/internal/api"
)

// Deployment environments. They select the log level.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultLogFile = "casedesk.log"
	DefaultTimeout = 15
)

type Config struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Env            string `yaml:"env"`
	LogFile        string `yaml:"log_file"`
	LogLevel       string `yaml:"log_level"`
	View           string `yaml:"view"`

	// Path is the file the config was read from, "" if none.
	Path string `yaml:"-"`
}

// Timeout returns the per-request timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path (skipped when path is ""), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Path = path
	}

	// Env vars override YAML values
	envOverride(&cfg.BaseURL, "CASEDESK_URL")
	envOverride(&cfg.Env, "CASEDESK_ENV")
	envOverride(&cfg.LogFile, "CASEDESK_LOG_FILE")
	envOverride(&cfg.LogLevel, "CASEDESK_LOG_LEVEL")
	envOverride(&cfg.View, "CASEDESK_VIEW")
	if err := envOverrideInt(&cfg.TimeoutSeconds, "CASEDESK_TIMEOUT"); err != nil {
		return cfg, err
	}

	// Defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = DefaultTimeout
	}
	if cfg.Env == "" {
		cfg.Env = EnvLocal
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	if _, err := api.ParseBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid timeout_seconds '%d': must be >= 1", c.TimeoutSeconds)
	}
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("env must be one of local, dev, prod, got '%s'", c.Env)
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
