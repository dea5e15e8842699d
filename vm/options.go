// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"fmt"
)

// Backend selects how instructions are executed.
type Backend uint8

const (
	// BackendInterpreter decodes every instruction at each step.
	BackendInterpreter Backend = iota
	// BackendCompiled precompiles the program into closures with operand
	// accessors resolved ahead of time.
	BackendCompiled
)

func (b Backend) String() string {
	switch b {
	case BackendInterpreter:
		return "interpreter"
	case BackendCompiled:
		return "compiled"
	default:
		return fmt.Sprintf("Backend(%d)", uint8(b))
	}
}

// ParseBackend converts "interpreter" or "compiled" into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "interpreter", "interp":
		return BackendInterpreter, nil
	case "compiled":
		return BackendCompiled, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}

// Policy selects which lanes of a divergent branch run first.
type Policy uint8

const (
	// FallthroughFirst runs the lanes that do not jump first and defers the
	// jumping lanes. An if therefore runs its then arm before its else arm.
	FallthroughFirst Policy = iota
	// TakenFirst runs the jumping lanes first.
	TakenFirst
)

func (p Policy) String() string {
	switch p {
	case FallthroughFirst:
		return "fallthrough-first"
	case TakenFirst:
		return "taken-first"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy converts "fallthrough-first" or "taken-first" into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "fallthrough-first", "fallthrough":
		return FallthroughFirst, nil
	case "taken-first", "taken":
		return TakenFirst, nil
	default:
		return 0, fmt.Errorf("unknown divergence policy %q", s)
	}
}

// Options configures a VM.
type Options struct {
	// Backend selects the interpreter or the precompiled closures.
	Backend Backend

	// Policy orders the two halves of a divergent branch. Final register
	// contents do not depend on it; step order does.
	Policy Policy

	// MaxSteps stops execution with ErrStepLimit once that many
	// instructions have run. Zero means no limit.
	MaxSteps int

	// CheckInvariant verifies after every step that the active mask and
	// the divergence stack partition the live lanes, failing the run
	// otherwise.
	CheckInvariant bool
}

// DefaultOptions returns the interpreter with fall-through-first ordering
// and no step limit.
func DefaultOptions() Options {
	return Options{
		Backend: BackendInterpreter,
		Policy:  FallthroughFirst,
	}
}
