// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shadervm

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/vm"
)

func TestAssemble_RunsMad(t *testing.T) {
	p, err := Assemble("cs_5_0\nmad r0, v0, v1, l(1.0)\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m, err := New(p, 2, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for lane := range 2 {
		if err := m.SetLaneInput(lane, 0, bytecode.Float4(2, 0, 1, -1)); err != nil {
			t.Fatal(err)
		}
		if err := m.SetLaneInput(lane, 1, bytecode.Float4(3, 5, 1, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for lane := range 2 {
		got, err := m.Temp(lane, 0)
		if err != nil {
			t.Fatal(err)
		}
		if want := bytecode.Float4(7, 1, 2, 0); got != want {
			t.Errorf("lane %d r0 = %v, want %v", lane, got, want)
		}
	}
}

func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		opts   Options
		prefix string
		kind   bytecode.ErrorKind
		all    []string
	}{
		{
			name:   "syntax",
			source: "mov r0\n",
			opts:   DefaultOptions(),
			prefix: "parse error: ",
			kind:   bytecode.ErrMalformedProgram,
		},
		{
			name:   "every validation error",
			source: "cs_5_0\ndcl_temps 1\nmov r3, r0\nmov r5, r0\n",
			opts:   DefaultOptions(),
			prefix: "validation failed: ",
			kind:   bytecode.ErrOutOfBounds,
			all:    []string{"r3", "r5"},
		},
		{
			name:   "first error only",
			source: "cs_5_0\ndcl_temps 1\nmov r3, r0\nmov r5, r0\n",
			opts:   Options{VM: vm.DefaultOptions()},
			prefix: "lowering error: ",
			kind:   bytecode.ErrOutOfBounds,
			all:    []string{"r3"},
		},
		{
			name:   "unbalanced block",
			source: "cs_5_0\nif_nz r0.x\nmov r0, l(1)\n",
			opts:   DefaultOptions(),
			kind:   bytecode.ErrMalformedProgram,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssembleWithOptions(tt.source, tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("error %q does not start with %q", err, tt.prefix)
			}
			if !bytecode.IsKind(err, tt.kind) {
				t.Errorf("error %v is not %s", err, tt.kind)
			}
			for _, s := range tt.all {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q does not mention %s", err, s)
				}
			}
		})
	}
}

func TestValidate_NilProgram(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for nil program")
	}
	if _, err := Compile(nil); err == nil {
		t.Error("expected Compile to reject nil program")
	}
}

func TestNew_PassesVMOptions(t *testing.T) {
	p, err := Assemble("cs_5_0\nloop\nmov r0, l(1)\nendloop\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	opts := DefaultOptions()
	opts.VM.MaxSteps = 10
	opts.VM.Backend = vm.BackendCompiled
	m, err := New(p, 1, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Run(); !bytecode.IsKind(err, bytecode.ErrStepLimit) {
		t.Errorf("Run = %v, want step limit", err)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	if Logger() == nil {
		t.Fatal("Logger returned nil")
	}
	p, err := Assemble("ps_5_0\nif_nz v0.x\nmov o0, l(1)\nendif\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m, err := New(p, 4, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "shadervm: finished") {
		t.Errorf("log output missing finish record:\n%s", buf.String())
	}

	SetLogger(nil)
	buf.Reset()
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nil logger still wrote:\n%s", buf.String())
	}
}
