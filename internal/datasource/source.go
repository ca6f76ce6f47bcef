// Package datasource discovers the casedesk configuration and connects the
// API client to the backend it names.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/daviddao/casedesk/internal/api"
	"github.com/daviddao/casedesk/internal/config"
)

const (
	defaultDir    = ".casedesk"
	defaultConfig = ".casedesk/config.yaml"
)

// ErrNoConfig is returned by Discover when no config file exists anywhere it
// looks. Running without one is fine; defaults and env vars apply.
var ErrNoConfig = errors.New("no casedesk config found")

// Discover finds the casedesk config path.
// Priority: CASEDESK_CONFIG env var > .casedesk/config.yaml in CWD > walk up parents.
func Discover() (string, error) {
	if env := os.Getenv("CASEDESK_CONFIG"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		return "", fmt.Errorf("CASEDESK_CONFIG=%q: %w", env, os.ErrNotExist)
	}

	// Check CWD first.
	if _, err := os.Stat(defaultConfig); err == nil {
		abs, err := filepath.Abs(defaultConfig)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for %s: %w", defaultConfig, err)
		}
		return abs, nil
	}

	// Walk up parent directories.
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, defaultConfig)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w (looked for %s)", ErrNoConfig, defaultConfig)
}

// LoadConfig loads the config at explicit, or the discovered one when
// explicit is empty. A missing discovered file is not an error.
func LoadConfig(explicit string) (config.Config, error) {
	path := explicit
	if path == "" {
		found, err := Discover()
		switch {
		case errors.Is(err, ErrNoConfig):
		case err != nil:
			return config.Config{}, err
		default:
			path = found
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Connect returns an API client for the backend named in cfg.
func Connect(cfg config.Config, log *logrus.Entry) (*api.Client, error) {
	c, err := api.New(cfg.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.BaseURL, err)
	}
	return c, nil
}
