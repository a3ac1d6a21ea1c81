// Package logging builds the zap logger shared by every component. Logs go to
// stderr so stdout stays clean for the report.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and encoding.
type Options struct {
	Verbose bool
	Format  string // "json" or "console" (default)

	// OutputPaths overrides the sinks; defaults to stderr.
	OutputPaths []string
}

// Config returns the zap configuration for o.
func Config(o Options) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.DisableCaller = true
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if o.Format != "json" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	if o.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if len(o.OutputPaths) > 0 {
		cfg.OutputPaths = o.OutputPaths
		cfg.ErrorOutputPaths = o.OutputPaths
	}
	return cfg
}

// New builds a logger from o.
func New(o Options) (*zap.Logger, error) {
	l, err := Config(o).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
