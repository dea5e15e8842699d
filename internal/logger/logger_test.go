// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultIsSilent(t *testing.T) {
	Set(nil)
	l := Get()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should be disabled at %v", level)
		}
	}
	if Enabled() {
		t.Error("Enabled() = true for the default logger")
	}
}

func TestSetCustomLogger(t *testing.T) {
	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer Set(nil)

	if !Enabled() {
		t.Fatal("Enabled() = false after installing a debug logger")
	}
	Get().Debug("divergence", "pc", 3)
	if !strings.Contains(buf.String(), "pc=3") {
		t.Errorf("log output = %q, want it to contain pc=3", buf.String())
	}
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle() = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs should return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup should return nopHandler")
	}
}
