// Package logging provides zap logger construction and helpers for
// sanitizing sensitive values before they reach log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger appropriate for the given environment.
// "local" gets a human-readable development config; everything else gets
// production JSON output suitable for log aggregation.
func NewLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
