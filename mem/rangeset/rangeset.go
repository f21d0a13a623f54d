// Package rangeset implements a disjoint set of inclusive uint64 intervals.
//
// A Set holds non-overlapping, non-adjacent ranges in sorted order and
// supports the algebra the allocation engine is built on: union, subtract,
// intersect, alignment into page-number space, and uniform random element
// choice. All bounds are inclusive, matching physical address ranges where
// the topmost address must be representable.
//
// Sets are not safe for concurrent mutation.
package rangeset

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sort"
	"strings"
)

// Range is one inclusive interval [Lo, Hi].
type Range struct {
	Lo uint64
	Hi uint64
}

// size returns the element count of r. A full-domain range overflows uint64
// by one; callers treat 0 from a non-empty range as 2^64.
func (r Range) size() uint64 {
	return r.Hi - r.Lo + 1
}

// Set is a sorted collection of disjoint, non-adjacent ranges.
// The zero value is an empty, usable set.
type Set struct {
	ranges []Range
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// NewFromRange returns a set holding the single range [lo, hi].
func NewFromRange(lo, hi uint64) *Set {
	s := New()
	s.AddRange(lo, hi)
	return s
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	dup := &Set{ranges: make([]Range, len(s.ranges))}
	copy(dup.ranges, s.ranges)
	return dup
}

// IsEmpty reports whether the set contains no values.
func (s *Set) IsEmpty() bool {
	return len(s.ranges) == 0
}

// Size returns the total number of values in the set.
// A set covering the entire uint64 domain reports 0 by wraparound; the
// engine never builds such a set (physical addresses top out well below).
func (s *Set) Size() uint64 {
	var total uint64
	for _, r := range s.ranges {
		total += r.size()
	}
	return total
}

// LowerBound returns the smallest value in the set, or 0 if empty.
func (s *Set) LowerBound() uint64 {
	if len(s.ranges) == 0 {
		return 0
	}
	return s.ranges[0].Lo
}

// UpperBound returns the largest value in the set, or 0 if empty.
// Callers must check IsEmpty first when 0 is a legal value.
func (s *Set) UpperBound() uint64 {
	if len(s.ranges) == 0 {
		return 0
	}
	return s.ranges[len(s.ranges)-1].Hi
}

// Ranges returns the underlying ranges in ascending order.
// The slice is shared; callers must not mutate it.
func (s *Set) Ranges() []Range {
	return s.ranges
}

// search returns the index of the first range with Hi >= v.
func (s *Set) search(v uint64) int {
	return sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Hi >= v
	})
}

// ContainsValue reports whether v is in the set.
func (s *Set) ContainsValue(v uint64) bool {
	i := s.search(v)
	return i < len(s.ranges) && s.ranges[i].Lo <= v
}

// ContainsRange reports whether every value in [lo, hi] is in the set.
func (s *Set) ContainsRange(lo, hi uint64) bool {
	i := s.search(lo)
	return i < len(s.ranges) && s.ranges[i].Lo <= lo && hi <= s.ranges[i].Hi
}

// Intersects reports whether any value in [lo, hi] is in the set.
func (s *Set) Intersects(lo, hi uint64) bool {
	i := s.search(lo)
	return i < len(s.ranges) && s.ranges[i].Lo <= hi
}

// AddRange inserts [lo, hi], merging with any overlapping or adjacent
// ranges.
func (s *Set) AddRange(lo, hi uint64) {
	if hi < lo {
		lo, hi = hi, lo
	}

	// First range that could merge with [lo, hi]: Hi >= lo-1 (adjacency).
	mergeFrom := lo
	if lo > 0 {
		mergeFrom = lo - 1
	}
	i := s.search(mergeFrom)

	j := i
	for j < len(s.ranges) {
		r := s.ranges[j]
		adjacent := hi != ^uint64(0) && r.Lo == hi+1
		if r.Lo > hi && !adjacent {
			break
		}
		if r.Lo < lo {
			lo = r.Lo
		}
		if r.Hi > hi {
			hi = r.Hi
		}
		j++
	}

	s.ranges = append(s.ranges[:i], append([]Range{{lo, hi}}, s.ranges[j:]...)...)
}

// SubRange removes every value in [lo, hi] from the set, splitting ranges
// as needed.
func (s *Set) SubRange(lo, hi uint64) {
	if hi < lo {
		lo, hi = hi, lo
	}

	i := s.search(lo)
	out := s.ranges[:i:i]
	for ; i < len(s.ranges); i++ {
		r := s.ranges[i]
		if r.Lo > hi {
			break
		}
		if r.Lo < lo {
			out = append(out, Range{r.Lo, lo - 1})
		}
		if r.Hi > hi {
			out = append(out, Range{hi + 1, r.Hi})
		}
	}
	s.ranges = append(out, s.ranges[i:]...)
}

// MergeSet unions other into the set.
func (s *Set) MergeSet(other *Set) {
	for _, r := range other.ranges {
		s.AddRange(r.Lo, r.Hi)
	}
}

// SubtractSet removes every value of other from the set.
func (s *Set) SubtractSet(other *Set) {
	for _, r := range other.ranges {
		s.SubRange(r.Lo, r.Hi)
	}
}

// ApplySet intersects the set with other, keeping only values present in
// both.
func (s *Set) ApplySet(other *Set) {
	var out []Range
	i, j := 0, 0
	for i < len(s.ranges) && j < len(other.ranges) {
		a, b := s.ranges[i], other.ranges[j]
		lo := max(a.Lo, b.Lo)
		hi := min(a.Hi, b.Hi)
		if lo <= hi {
			out = append(out, Range{lo, hi})
		}
		if a.Hi < b.Hi {
			i++
		} else {
			j++
		}
	}
	s.ranges = out
}

// ChooseValue picks one value uniformly at random from the set.
// The second result is false when the set is empty.
func (s *Set) ChooseValue(rng *rand.Rand) (uint64, bool) {
	total := s.Size()
	if len(s.ranges) == 0 || total == 0 {
		return 0, false
	}
	k := rng.Uint64N(total)
	for _, r := range s.ranges {
		n := r.size()
		if k < n {
			return r.Lo + k, true
		}
		k -= n
	}
	// Unreachable while Size() is consistent with the ranges.
	return 0, false
}

// AlignWithPage converts the set from address space to page-number space
// for the page size described by pageMask (the low-bit mask, e.g. 0xFFF for
// 4KiB pages). Each range is narrowed to the pages fully contained in it;
// ranges smaller than one aligned page disappear.
func (s *Set) AlignWithPage(pageMask uint64) {
	shift := uint(bits.Len64(pageMask))
	out := s.ranges[:0]
	for _, r := range s.ranges {
		lo := r.Lo
		if lo&pageMask != 0 {
			lo = (lo | pageMask) + 1 // round up to the next page start
			if lo == 0 {
				continue // wrapped past the top of the domain
			}
		}
		if r.Hi < pageMask || r.Hi-pageMask < lo {
			continue // no fully contained page
		}
		hi := ((r.Hi - pageMask) | pageMask) - pageMask // last page start at or below Hi-pageMask
		if hi < lo {
			continue
		}
		out = append(out, Range{lo >> shift, hi >> shift})
	}
	s.ranges = out
}

// FilterAligned narrows each range so that its bounds fall on the alignment
// described by alignMask (the high-bit mask, e.g. ^uint64(0xFFF)). Ranges
// with no aligned value are dropped. Interior values keep their natural
// spacing; callers stepping by the alignment see only aligned values.
func (s *Set) FilterAligned(alignMask uint64) {
	low := ^alignMask
	out := s.ranges[:0]
	for _, r := range s.ranges {
		lo := r.Lo
		if lo&low != 0 {
			lo = (lo | low) + 1
			if lo == 0 { // rounded past the top of the domain
				continue
			}
		}
		hi := r.Hi & alignMask
		if hi < lo {
			continue
		}
		out = append(out, Range{lo, hi})
	}
	s.ranges = out
}

// ShiftElements displaces every value in the set by delta. Ranges pushed
// past either end of the domain are clamped, and ranges shifted entirely
// out of the domain are dropped.
func (s *Set) ShiftElements(delta int64) {
	if delta == 0 || len(s.ranges) == 0 {
		return
	}
	out := s.ranges[:0]
	for _, r := range s.ranges {
		lo, hi := r.Lo, r.Hi
		if delta > 0 {
			d := uint64(delta)
			if lo > ^uint64(0)-d {
				continue
			}
			lo += d
			if hi > ^uint64(0)-d {
				hi = ^uint64(0)
			} else {
				hi += d
			}
		} else {
			d := uint64(-delta)
			if hi < d {
				continue
			}
			hi -= d
			if lo < d {
				lo = 0
			} else {
				lo -= d
			}
		}
		out = append(out, Range{lo, hi})
	}
	s.ranges = out
}

// String renders the set as a compact list of hex ranges, e.g.
// "[0x1000-0x1fff][0x3000-0x3000]". An empty set renders as "[]".
func (s *Set) String() string {
	if len(s.ranges) == 0 {
		return "[]"
	}
	var b strings.Builder
	for _, r := range s.ranges {
		fmt.Fprintf(&b, "[0x%x-0x%x]", r.Lo, r.Hi)
	}
	return b.String()
}
