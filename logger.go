// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shadervm

import (
	"log/slog"

	"github.com/gogpu/shadervm/internal/logger"
)

// SetLogger configures the logger for shadervm and all its sub-packages.
// By default, shadervm produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Everything is logged at [slog.LevelDebug]: lowering summaries, divergence
// and reconvergence of the warp, and lane retirement.
//
// Example:
//
//	shadervm.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the current logger used by shadervm.
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logger.Get()
}
