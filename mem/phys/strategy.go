package phys

import (
	"math/rand/v2"

	"github.com/verigen/physmem/mem/rangeset"
)

// Strategy selects how a fresh physical page is carved from free memory.
// It is a closed set: identity (flat) placement or uniform random
// placement.
type Strategy uint8

const (
	// StrategyRandom places the page uniformly at random over the free,
	// aligned, in-boundary candidates.
	StrategyRandom Strategy = iota

	// StrategyFlat places the page at the physical address equal to the
	// virtual address.
	StrategyFlat
)

// strategyFor picks the strategy a request asks for.
func strategyFor(req *Request) Strategy {
	if req.FlatMap {
		return StrategyFlat
	}
	return StrategyRandom
}

func (s Strategy) String() string {
	if s == StrategyFlat {
		return "flat"
	}
	return "random"
}

// Carve selects one free page of info's granularity, respecting boundary.
// alignedFree is the free cache in page-number space for that granularity.
// On success info's physical start is set and Carve returns true; on
// failure nothing is modified.
func (s Strategy) Carve(va uint64, alignedFree, boundary *rangeset.Set, req *Request, info *SizeInfo, rng *rand.Rand) bool {
	shift := info.Type.Shift()
	mask := info.Type.Mask()

	switch s {
	case StrategyFlat:
		start := va &^ mask
		end := start + info.ByteSize() - 1
		if end < start {
			return false // wrapped past the top of the address space
		}
		if !alignedFree.ContainsRange(start>>shift, end>>shift) {
			return false
		}
		if !boundary.ContainsRange(start, end) {
			return false
		}
		info.Start = start
		return true

	case StrategyRandom:
		available := alignedFree.Clone()
		inBoundary := boundary.Clone()
		inBoundary.AlignWithPage(mask)
		available.ApplySet(inBoundary)

		// A start page is legal when every page of the span is available.
		candidates := available.Clone()
		for k := uint64(1); k < info.PageCount(); k++ {
			shifted := available.Clone()
			shifted.ShiftElements(-int64(k))
			candidates.ApplySet(shifted)
		}

		pageNum, ok := candidates.ChooseValue(rng)
		if !ok {
			return false
		}
		info.Start = pageNum << shift
		return true
	}
	fail("unrecognized_strategy", "unknown mapping strategy %d", uint8(s))
	return false
}
