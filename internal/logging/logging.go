// Package logging configures the logrus logger. The terminal belongs to the
// UI, so log output always goes to a file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/daviddao/casedesk/internal/config"
)

// Setup opens the log file and returns an entry configured for env. An
// explicit level overrides the environment's default. The returned closer
// flushes and closes the file.
func Setup(env, level, path string) (*logrus.Entry, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log, err := New(f, env, level)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return log, f, nil
}

// New builds a logger writing to w.
func New(w io.Writer, env, level string) (*logrus.Entry, error) {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	if env == config.EnvProd {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := Level(env, level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)

	return logrus.NewEntry(log).WithField("app", "casedesk"), nil
}

// Level resolves the logging level: an explicit level wins, otherwise the
// environment's default.
func Level(env, level string) (logrus.Level, error) {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return logrus.WarnLevel, fmt.Errorf("invalid log level: %w", err)
		}
		return lvl, nil
	}
	switch env {
	case config.EnvLocal:
		return logrus.DebugLevel, nil
	case config.EnvDev:
		return logrus.InfoLevel, nil
	default:
		return logrus.WarnLevel, nil
	}
}

// Discard returns a logger that drops everything. Used by tests and --json.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
