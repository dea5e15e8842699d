// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package flow lowers structured shader bytecode into explicit branches.
//
// Lowering runs in three passes:
//
//  1. Rewrite replaces if/else/loop/switch tokens with OpBranch and
//     OpBranchC, recording the structured merge of each branch.
//  2. BuildGraph splits the result into basic blocks and computes
//     post-dominators.
//  3. Lower flattens the blocks into a Program and gives every branch a
//     reconvergence point that post-dominates it.
//
// Compile runs all three after validating the input program.
package flow
