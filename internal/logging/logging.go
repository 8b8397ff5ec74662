// Package logging builds the zap loggers the commands use.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a JSON production logger, or a console logger when
// development is set, filtered at level (debug, info, warn, error).
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

// Must is New that falls back to a no-op logger on error.
func Must(level string, development bool) *zap.Logger {
	l, err := New(level, development)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
