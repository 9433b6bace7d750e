package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cyderes/facebook-auto-poster/internal/config"
)

const defaultLevel = logrus.InfoLevel

// New builds the process logger. The returned closer releases the log file
// when one is configured.
func New(cfg config.LogConfig) (*logrus.Logger, func() error, error) {
	l := logrus.New()
	l.Formatter = resolveFormatter(cfg.Format)
	l.Out = os.Stdout

	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		l.Out = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	lvl, err := resolveLogLevel(cfg.Level)
	l.Level = lvl
	if err != nil {
		l.Errorf("an error occurred resolving the log level: %s", err)
	}

	return l, closer, nil
}

func resolveFormatter(format string) logrus.Formatter {
	if format == "text" {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

func resolveLogLevel(envLvl string) (logrus.Level, error) {
	if envLvl == "" {
		return defaultLevel, nil
	}

	lvl, err := logrus.ParseLevel(envLvl)
	if err != nil {
		return defaultLevel, err
	}

	return lvl, nil
}
