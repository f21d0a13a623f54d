package phys

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigen/physmem/mem/rangeset"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 42))
}

// alignedPages converts a free set to page-number space for g, the way the
// manager builds its caches.
func alignedPages(free *rangeset.Set, g Granularity) *rangeset.Set {
	aligned := free.Clone()
	aligned.AlignWithPage(g.Mask())
	return aligned
}

// TestStrategyForRequest verifies the flat flag selects the flat variant.
func TestStrategyForRequest(t *testing.T) {
	assert.Equal(t, StrategyFlat, strategyFor(&Request{FlatMap: true}))
	assert.Equal(t, StrategyRandom, strategyFor(&Request{}))
}

// TestFlatCarvePlacesIdentity verifies PA = VA on the flat path.
func TestFlatCarvePlacesIdentity(t *testing.T) {
	free := rangeset.NewFromRange(0x0, 0xFFFF)
	boundary := free.Clone()
	info := NewSizeInfo(Size4K)

	ok := StrategyFlat.Carve(0x3000, alignedPages(free, Size4K), boundary, &Request{FlatMap: true}, info, testRNG())
	require.True(t, ok)
	assert.Equal(t, uint64(0x3000), info.Start)
	assert.Equal(t, uint64(0x3FFF), info.End())
}

// TestFlatCarveFailsOutsideFreeOrBoundary verifies both constraint checks.
func TestFlatCarveFailsOutsideFreeOrBoundary(t *testing.T) {
	free := rangeset.NewFromRange(0x0, 0x7FFF)
	req := &Request{FlatMap: true}

	// Target page not free.
	info := NewSizeInfo(Size4K)
	ok := StrategyFlat.Carve(0x9000, alignedPages(free, Size4K), free.Clone(), req, info, testRNG())
	assert.False(t, ok)
	assert.Zero(t, info.Start, "failed carve must not mutate the size info")

	// Free but outside the boundary.
	boundary := rangeset.NewFromRange(0x0, 0x3FFF)
	info = NewSizeInfo(Size4K)
	ok = StrategyFlat.Carve(0x5000, alignedPages(free, Size4K), boundary, req, info, testRNG())
	assert.False(t, ok)
}

// TestRandomCarveStaysLegal verifies random placements are aligned, free
// and inside the boundary.
func TestRandomCarveStaysLegal(t *testing.T) {
	free := rangeset.New()
	free.AddRange(0x2000, 0x5FFF)
	free.AddRange(0x9000, 0x9FFF)
	boundary := rangeset.NewFromRange(0x0, 0xFFFF)
	rng := testRNG()

	for range 50 {
		info := NewSizeInfo(Size4K)
		ok := StrategyRandom.Carve(0x0, alignedPages(free, Size4K), boundary, &Request{}, info, rng)
		require.True(t, ok)
		assert.Zero(t, info.Start&Size4K.Mask(), "placement must be page aligned")
		assert.True(t, free.ContainsRange(info.Start, info.End()), "placement must be free")
	}
}

// TestRandomCarveMultiPageSpan verifies spans longer than one page only
// land on contiguous free pages.
func TestRandomCarveMultiPageSpan(t *testing.T) {
	free := rangeset.New()
	free.AddRange(0x1000, 0x1FFF) // single page, too small
	free.AddRange(0x4000, 0x6FFF) // three contiguous pages
	boundary := rangeset.NewFromRange(0x0, 0xFFFF)
	rng := testRNG()

	for range 20 {
		info := NewSizeInfoBytes(Size4K, 0x3000)
		ok := StrategyRandom.Carve(0x0, alignedPages(free, Size4K), boundary, &Request{}, info, rng)
		require.True(t, ok)
		assert.Equal(t, uint64(0x4000), info.Start)
		assert.Equal(t, uint64(0x6FFF), info.End())
	}
}

// TestRandomCarveFailsWhenNoCandidate verifies the empty-candidate outcome.
func TestRandomCarveFailsWhenNoCandidate(t *testing.T) {
	free := rangeset.NewFromRange(0x100, 0x8FF) // smaller than one page
	boundary := rangeset.NewFromRange(0x0, 0xFFFF)

	info := NewSizeInfo(Size4K)
	ok := StrategyRandom.Carve(0x0, alignedPages(free, Size4K), boundary, &Request{}, info, testRNG())
	assert.False(t, ok)
}

// TestSizeInfoRounding verifies byte sizes round up to whole pages.
func TestSizeInfoRounding(t *testing.T) {
	info := NewSizeInfo(Size4K)
	assert.Equal(t, uint64(0x1000), info.ByteSize())
	assert.Equal(t, uint64(1), info.PageCount())

	info = NewSizeInfoBytes(Size4K, 0x1001)
	assert.Equal(t, uint64(0x2000), info.ByteSize())
	assert.Equal(t, uint64(2), info.PageCount())

	info = NewSizeInfoBytes(Size2M, 1)
	assert.Equal(t, Size2M.ByteSize(), info.ByteSize())
}

// TestGranularityFatalOnUnknownTag verifies the coded fatal for an
// unrecognized page-size class.
func TestGranularityFatalOnUnknownTag(t *testing.T) {
	require.PanicsWithError(t,
		"phys: unrecognized_page_type: unknown page granularity tag 99",
		func() { Granularity(99).Shift() })
}
