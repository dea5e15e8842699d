// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package logger holds the process-wide logger shared by the flow and vm
// packages. The root shadervm package exposes it through SetLogger.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip building attributes entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNop() *slog.Logger { return slog.New(nopHandler{}) }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(newNop())
}

// Set replaces the shared logger. Nil restores the silent default.
func Set(l *slog.Logger) {
	if l == nil {
		l = newNop()
	}
	current.Store(l)
}

// Get returns the shared logger. It is safe for concurrent use.
func Get() *slog.Logger {
	return current.Load()
}

// Enabled reports whether debug records would be handled, so hot paths can
// skip attribute construction.
func Enabled() bool {
	return current.Load().Enabled(context.Background(), slog.LevelDebug)
}
