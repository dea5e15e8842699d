// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package vm executes lowered shader programs on a warp of lanes in SIMT
// fashion.
//
// All lanes of a warp share one program counter. A conditional branch that
// splits the active lanes runs one side first and pushes the other onto the
// divergence stack; both sides meet again at the branch's reconvergence
// point computed by package flow. Lanes retired by ret, retc or discard
// leave the warp for the rest of the run.
//
// Two backends execute instructions: an interpreter that decodes operands
// on every step, and a compiled backend that turns each instruction into a
// closure once when the VM is created. They produce bit-identical results.
//
// Execution is observable step by step:
//
//	m, _ := vm.New(program, 4, vm.DefaultOptions())
//	for r, err := range m.Execute() {
//		if err != nil {
//			return err
//		}
//		fmt.Println(r)
//	}
package vm
