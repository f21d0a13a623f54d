package phys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigen/physmem/internal/testutil"
	"github.com/verigen/physmem/mem/phys"
	"github.com/verigen/physmem/mem/rangeset"
)

// validateInvariants checks the cross-structure invariants after every
// mutation: live pages pairwise disjoint and sorted, allocated equal to the
// union of page ranges, free and allocated partitioning the boundary, and
// alias-exclude contained in allocated.
func validateInvariants(t *testing.T, m *phys.Manager) {
	t.Helper()

	pages := m.Pages()
	union := rangeset.New()
	for i, p := range pages {
		require.LessOrEqual(t, p.Lower(), p.Upper())
		if i > 0 {
			prev := pages[i-1]
			require.Less(t, prev.Upper(), p.Lower(),
				"pages [0x%x,0x%x] and [0x%x,0x%x] overlap or are unsorted",
				prev.Lower(), prev.Upper(), p.Lower(), p.Upper())
		}
		union.AddRange(p.Lower(), p.Upper())
	}

	allocated := m.AllocatedRanges()
	require.Equal(t, allocated.String(), union.String(),
		"allocated set must equal the union of live page ranges")

	// usable == boundary in these tests, so free and allocated partition it.
	partition := m.FreeRanges()
	partition.MergeSet(allocated)
	require.Equal(t, m.Boundary().String(), partition.String())

	excluded := m.AliasExcludeRanges()
	excluded.SubtractSet(allocated)
	require.True(t, excluded.IsEmpty(), "alias-exclude must stay inside allocated")
}

// TestFuzzRandomRequestsGuardInvariants drives a random request mix and
// validates the bookkeeping invariants after every step.
func TestFuzzRandomRequestsGuardInvariants(t *testing.T) {
	m, tm := testutil.SetupManager(t, 0x0, 0xFF_FFFF)
	tm.Registry().AddConflict("Device", "Normal")
	rng := testutil.RNG(7)
	choices := testutil.FixedChoices{Value: 0}

	attrs := [][]string{nil, {"Normal"}, {"Device"}, {"Scratch"}}

	for i := range 300 {
		req := &phys.Request{
			FlatMap:    rng.IntN(4) == 0,
			ForceAlias: rng.IntN(8) == 0,
			NoAlias:    rng.IntN(10) == 0,
			InstrAddr:  rng.IntN(2) == 0,
			ImplAttrs:  attrs[rng.IntN(len(attrs))],
		}
		va := uint64(rng.IntN(0x1000)) << 12
		info := phys.NewSizeInfo(phys.Size4K)

		if m.AllocatePage(0, va, 0, req, info, choices) {
			require.NotZero(t, info.Page, "step %d: success must resolve a page id", i)
			page := m.FindPhysicalPageByID(info.Page)
			require.NotNil(t, page, "step %d: resolved id must be live", i)
			require.True(t, page.Contains(info.Start),
				"step %d: resolved start must land in the resolved page", i)
		}
		validateInvariants(t, m)
	}

	stats := m.Stats()
	assert.Positive(t, stats.NewAllocations)
	assert.Positive(t, stats.AliasAllocations)
}

// TestIdsStrictlyIncreaseAcrossMerges verifies fresh ids keep increasing
// and merged-away ids are never reissued.
func TestIdsStrictlyIncreaseAcrossMerges(t *testing.T) {
	m, _ := testutil.SetupManager(t, 0x0, 0xFFFF)

	a := phys.NewSizeInfo(phys.Size4K)
	require.True(t, m.NewAllocation(0, 0x0, a, &phys.Request{FlatMap: true}))
	b := phys.NewSizeInfo(phys.Size4K)
	require.True(t, m.NewAllocation(0, 0x2000, b, &phys.Request{FlatMap: true}))

	merged := phys.NewSizeInfoBytes(phys.Size4K, 0x3000)
	require.True(t, m.AliasAllocation(0, 0x0, merged, &phys.Request{PATarget: 0x0, HasPATarget: true}))
	require.Equal(t, phys.PageID(3), merged.Page)

	// The ids consumed by merged-away pages stay dead.
	assert.Nil(t, m.FindPhysicalPageByID(a.Page))
	assert.Nil(t, m.FindPhysicalPageByID(b.Page))

	c := phys.NewSizeInfo(phys.Size4K)
	require.True(t, m.NewAllocation(0, 0x4000, c, &phys.Request{FlatMap: true}))
	assert.Equal(t, phys.PageID(4), c.Page)
}

// TestAllocationDeterminism verifies an identical request stream against an
// identically seeded manager yields an identical layout.
func TestAllocationDeterminism(t *testing.T) {
	type placed struct {
		id     phys.PageID
		lo, hi uint64
	}
	layout := func() []placed {
		m, _ := testutil.SetupManager(t, 0x0, 0xF_FFFF)
		rng := testutil.RNG(99)
		choices := testutil.FixedChoices{Value: 0}
		for range 64 {
			req := &phys.Request{FlatMap: rng.IntN(3) == 0}
			va := uint64(rng.IntN(0x100)) << 12
			m.AllocatePage(0, va, 0, req, phys.NewSizeInfo(phys.Size4K), choices)
		}
		var out []placed
		for _, p := range m.Pages() {
			out = append(out, placed{p.ID(), p.Lower(), p.Upper()})
		}
		return out
	}

	first := layout()
	second := layout()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "seeded runs must place identically")
}
