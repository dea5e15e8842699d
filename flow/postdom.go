// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"github.com/bits-and-blooms/bitset"
)

// postDominators holds, per block, the set of blocks post-dominating it and
// the immediate post-dominator. Index Exit() is the virtual exit.
type postDominators struct {
	sets      []*bitset.BitSet
	immediate []int
}

// computePostDominators runs the iterative data-flow solution on the
// reversed graph: pdom(exit) = {exit}, pdom(b) = {b} ∪ ⋂ pdom(s) over the
// successors s of b. Sets start full so blocks that never reach the exit
// keep every block and end up without an immediate post-dominator.
func computePostDominators(g *Graph) *postDominators {
	n := uint(len(g.Blocks) + 1)
	exit := g.Exit()

	sets := make([]*bitset.BitSet, n)
	for i := range sets {
		sets[i] = bitset.New(n)
		if i == exit {
			sets[i].Set(uint(exit))
		} else {
			sets[i].SetAll()
		}
	}

	scratch := bitset.New(n)
	for changed := true; changed; {
		changed = false
		// Reverse stream order visits successors first on forward code.
		for id := len(g.Blocks) - 1; id >= 0; id-- {
			b := g.Blocks[id]
			scratch.SetAll()
			for _, e := range b.Succs {
				scratch.InPlaceIntersection(sets[e.To])
			}
			scratch.Set(uint(id))
			if !scratch.Equal(sets[id]) {
				sets[id].ClearAll()
				sets[id].InPlaceUnion(scratch)
				changed = true
			}
		}
	}

	pd := &postDominators{sets: sets, immediate: make([]int, n)}
	pd.immediate[exit] = -1
	strict := bitset.New(n)
	for id := range g.Blocks {
		pd.immediate[id] = -1
		strict.ClearAll()
		strict.InPlaceUnion(sets[id])
		strict.Clear(uint(id))
		// The immediate post-dominator is the strict post-dominator whose own
		// set is exactly the remaining strict set.
		for c, ok := strict.NextSet(0); ok; c, ok = strict.NextSet(c + 1) {
			if sets[c].Equal(strict) {
				pd.immediate[id] = int(c)
				break
			}
		}
	}
	return pd
}
