package config

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// ParseLevel converts a logging.level value to a log level.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return log.ErrorLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	default:
		return log.InfoLevel, errors.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}
