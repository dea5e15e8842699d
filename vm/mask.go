// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"iter"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// LaneMask is a set of lane indices. Operations return new masks and never
// modify their receiver, so masks can be shared between frames freely.
// The zero value is an empty mask.
type LaneMask struct {
	bits *bitset.BitSet
}

// NewLaneMask returns an empty mask sized for n lanes.
func NewLaneMask(n int) LaneMask {
	return LaneMask{bits: bitset.New(uint(n))}
}

// FullMask returns a mask holding lanes 0 through n-1.
func FullMask(n int) LaneMask {
	m := NewLaneMask(n)
	m.bits.SetAll()
	return m
}

// MaskOf returns a mask sized for n lanes holding the given lanes.
func MaskOf(n int, lanes ...int) LaneMask {
	m := NewLaneMask(n)
	for _, lane := range lanes {
		m.bits.Set(uint(lane))
	}
	return m
}

func (m LaneMask) set() *bitset.BitSet {
	if m.bits == nil {
		return bitset.New(0)
	}
	return m.bits
}

// add sets lane in place. Only used on masks that have not been shared yet.
func (m LaneMask) add(lane int) {
	m.bits.Set(uint(lane))
}

// Has reports whether lane is in the mask.
func (m LaneMask) Has(lane int) bool {
	return m.bits != nil && lane >= 0 && m.bits.Test(uint(lane))
}

// Count returns the number of lanes in the mask.
func (m LaneMask) Count() int {
	if m.bits == nil {
		return 0
	}
	return int(m.bits.Count())
}

// IsEmpty reports whether the mask holds no lane.
func (m LaneMask) IsEmpty() bool {
	return m.bits == nil || m.bits.None()
}

// Union returns the lanes in either mask.
func (m LaneMask) Union(o LaneMask) LaneMask {
	return LaneMask{bits: m.set().Union(o.set())}
}

// Intersect returns the lanes in both masks.
func (m LaneMask) Intersect(o LaneMask) LaneMask {
	return LaneMask{bits: m.set().Intersection(o.set())}
}

// Without returns the lanes of m that are not in o.
func (m LaneMask) Without(o LaneMask) LaneMask {
	return LaneMask{bits: m.set().Difference(o.set())}
}

// Overlaps reports whether the masks share a lane.
func (m LaneMask) Overlaps(o LaneMask) bool {
	return m.set().IntersectionCardinality(o.set()) > 0
}

// Equal reports whether both masks hold the same lanes, regardless of the
// lane count they were sized for.
func (m LaneMask) Equal(o LaneMask) bool {
	return m.set().SymmetricDifferenceCardinality(o.set()) == 0
}

// Lanes yields the lanes of the mask in ascending order.
func (m LaneMask) Lanes() iter.Seq[int] {
	return func(yield func(int) bool) {
		if m.bits == nil {
			return
		}
		for i, ok := m.bits.NextSet(0); ok; i, ok = m.bits.NextSet(i + 1) {
			if !yield(int(i)) {
				return
			}
		}
	}
}

// String renders the mask as {0,2,3}.
func (m LaneMask) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for lane := range m.Lanes() {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.WriteString(strconv.Itoa(lane))
	}
	sb.WriteByte('}')
	return sb.String()
}
