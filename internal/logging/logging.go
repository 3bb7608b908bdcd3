// Package logging provides a single process-wide *zap.SugaredLogger: JSON
// in production, console in debug.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.SugaredLogger
)

// L returns the process-wide logger, building it on first use. GIN_MODE=debug
// selects a human-readable console encoder instead of JSON, so one env var
// flips both gin and logging into development mode together.
func L() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if os.Getenv("GIN_MODE") == "debug" {
			cfg = zap.NewDevelopmentConfig()
		}
		logger, err := cfg.Build()
		if err != nil {
			// zap itself failing to build is unrecoverable; fall back to a
			// no-op logger rather than crash the process over logging.
			logger = zap.NewNop()
		}
		global = logger.Sugar()
	})
	return global
}

// Sync flushes any buffered log entries; call from main before exit.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
