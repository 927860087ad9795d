// Package common holds the pieces shared by every binary: logger setup
// and build version.
package common

import (
	"log/slog"
	"os"
)

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/keyfleet/ticket-key-service/common.Version=...".
var Version = "dev"

// LoggingOpts configures SetupLogger.
type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON selects JSON output instead of text.
	JSON bool

	// Service is added as a "service" attribute when non-empty.
	Service string

	// Version is added as a "version" attribute when non-empty.
	Version string
}

// SetupLogger builds the process logger writing to stderr.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
