// Package phys implements the physical-memory allocation engine of the
// instruction-stream generator: carving disjoint physical regions for
// virtual mappings, aliasing multiple mappings onto shared regions under
// attribute-compatibility rules, and keeping the free/allocated/
// alias-exclude bookkeeping consistent across merges.
package phys

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/verigen/physmem/mem/rangeset"
	"github.com/verigen/physmem/mem/traits"
)

// Weighted-choice names consulted to order alias-first vs allocate-first
// attempts.
const (
	ChoiceInstrPageAliasing = "Instruction Page Aliasing"
	ChoiceDataPageAliasing  = "Data Page Aliasing"
)

// ChoicesAdapter supplies weighted policy choices. A result of 1 for the
// aliasing choices means "try aliasing before fresh allocation".
type ChoicesAdapter interface {
	WeightedChoice(name string) int
}

// Stats counts allocation outcomes for diagnostics and tooling.
type Stats struct {
	NewAllocations   int
	AliasAllocations int
	MergedPages      int
	FailedNew        int
	FailedAlias      int
}

// Manager owns the live page index and the range bookkeeping for one
// physical memory bank. It is not safe for concurrent use; the generation
// driver serializes calls.
type Manager struct {
	traits *traits.Manager
	rng    *rand.Rand
	log    *slog.Logger

	boundary     *rangeset.Set
	free         *rangeset.Set
	allocated    *rangeset.Set
	aliasExclude *rangeset.Set

	// alignedFree caches free memory per granularity, in page-number space.
	alignedFree map[Granularity]*rangeset.Set

	// pages is the id-indexed arena; index holds the ids sorted by range.
	pages map[PageID]*PhysicalPage
	index []PageID

	// nextID starts at 1 so 0 can serve as the invalid id.
	nextID PageID

	initialized bool
	stats       Stats
}

// NewManager returns an uninitialized manager. rng drives every random
// placement decision; logger may be nil to discard logging.
func NewManager(tm *traits.Manager, rng *rand.Rand, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		traits: tm,
		rng:    rng,
		log:    logger,
		nextID: 1,
	}
}

// Initialize installs the usable memory and the legal boundary, building
// the per-granularity aligned-free caches. It transitions the manager to
// its initialized state exactly once; absent or empty usable memory is a
// fatal configuration defect.
func (m *Manager) Initialize(usableMem, boundary *rangeset.Set) {
	if m.initialized {
		fail("manager_already_initialized", "Initialize called twice")
	}
	if usableMem == nil {
		fail("nullptr_usable_memory", "nil passed as usable physical memory")
	}
	if boundary == nil {
		fail("nullptr_boundary", "nil passed as physical boundary")
	}
	if usableMem.IsEmpty() {
		fail("empty_usable_memory", "attempting to initialize with empty usable memory")
	}

	m.boundary = boundary.Clone()
	m.free = usableMem.Clone()
	m.allocated = rangeset.New()
	m.aliasExclude = rangeset.New()

	m.alignedFree = make(map[Granularity]*rangeset.Set, len(Granularities()))
	for _, g := range Granularities() {
		aligned := m.free.Clone()
		aligned.AlignWithPage(g.Mask())
		m.alignedFree[g] = aligned
	}

	m.pages = make(map[PageID]*PhysicalPage)
	m.initialized = true

	m.log.Info("physical page manager initialized",
		"boundary", m.boundary.String(), "usable", m.free.String())
}

func (m *Manager) requireInit(op string) {
	if !m.initialized {
		fail("manager_not_initialized", "%s called before Initialize", op)
	}
}

// SubFromBoundary removes ranges from the legal boundary.
func (m *Manager) SubFromBoundary(s *rangeset.Set) {
	m.requireInit("SubFromBoundary")
	m.boundary.SubtractSet(s)
}

// AddToBoundary extends the legal boundary.
func (m *Manager) AddToBoundary(s *rangeset.Set) {
	m.requireInit("AddToBoundary")
	m.boundary.MergeSet(s)
}

// AllocatePage backs the virtual page at va with physical memory, deciding
// between fresh allocation and aliasing. A false return is a normal,
// recoverable outcome; no state beyond already-committed attempts changes.
func (m *Manager) AllocatePage(threadID uint32, va uint64, size uint64, req *Request, info *SizeInfo, choices ChoicesAdapter) bool {
	m.requireInit("AllocatePage")
	if size != 0 {
		info.Size = size
	}
	m.log.Debug("allocate page", "thread", threadID, "va", va, "size", info.ByteSize(), "granularity", info.Type.String())

	if req.ForceAlias {
		return m.AliasAllocation(threadID, va, info, req)
	}

	choiceName := ChoiceDataPageAliasing
	if req.InstrAddr {
		choiceName = ChoiceInstrPageAliasing
	}
	aliasFirst := choices.WeightedChoice(choiceName) == 1

	if aliasFirst {
		if m.AliasAllocation(threadID, va, info, req) {
			return true
		}
		return m.NewAllocation(threadID, va, info, req)
	}

	if m.NewAllocation(threadID, va, info, req) {
		return true
	}
	return m.AliasAllocation(threadID, va, info, req)
}

// NewAllocation carves a fresh physical page for va using the request's
// mapping strategy. On success the new page is indexed, its range tagged
// with the request's attributes, and all range sets updated; on failure no
// state changes.
func (m *Manager) NewAllocation(threadID uint32, va uint64, info *SizeInfo, req *Request) bool {
	m.requireInit("NewAllocation")

	strategy := strategyFor(req)
	if !strategy.Carve(va, m.alignedFree[info.Type], m.boundary, req, info, m.rng) {
		m.stats.FailedNew++
		m.log.Debug("new allocation failed", "strategy", strategy.String(),
			"va", va, "granularity", info.Type.String(), "err", ErrNoFreeRegion)
		return false
	}

	page := newPhysicalPage(info.Start, info.End(), req.CanAlias(), m.issueID())
	info.Page = page.ID()
	m.tagAttributes(threadID, m.traitIDs(req.attributeNames()), page)
	m.addPhysicalPage(page)
	m.stats.NewAllocations++

	m.log.Debug("new allocation", "page", uint64(page.ID()),
		"lower", page.Lower(), "upper", page.Upper(), "strategy", strategy.String())
	return true
}

// AliasAllocation maps va onto already-allocated physical memory. The
// physical target comes from, in order: the flat mapping, an explicit
// physical-address target, an explicit page-id target, or constraint
// solving. Policy then depends on how many live pages the candidate range
// overlaps. A false return leaves no partial mutation behind.
func (m *Manager) AliasAllocation(threadID uint32, va uint64, info *SizeInfo, req *Request) bool {
	m.requireInit("AliasAllocation")
	err := m.aliasAllocation(threadID, va, info, req)
	if err != nil {
		m.stats.FailedAlias++
		m.log.Debug("alias allocation failed", "va", va, "err", err)
		return false
	}
	m.stats.AliasAllocations++
	return true
}

func (m *Manager) aliasAllocation(threadID uint32, va uint64, info *SizeInfo, req *Request) error {
	isFlat := req.FlatMap

	// Resolve the physical target.
	var target uint64
	switch {
	case isFlat:
		target = va
	case req.HasPATarget:
		target = req.PATarget
	case req.AliasPageID != 0:
		page := m.FindPhysicalPageByID(req.AliasPageID)
		if page == nil {
			return ErrNoAliasTarget
		}
		target = page.Lower()
	default:
		solved, ok := m.SolveAliasConstraints(threadID, info, req)
		if !ok {
			return ErrNoAliasTarget
		}
		target = solved
	}

	info.Start = target
	candLo, candHi := info.Start, info.End()

	first, last := m.overlapRange(candLo, candHi)
	overlapped := m.index[first:last]
	aliasAttrIDs := m.traitIDs(req.aliasAttributeNames())

	switch len(overlapped) {
	case 0:
		m.log.Warn("alias target overlaps no live page", "lower", candLo, "upper", candHi)
		return ErrNoAliasTarget

	case 1:
		page := m.pages[overlapped[0]]

		if !req.ForceMemAttrs {
			pageWindow := m.traits.WindowOver(threadID, page.Lower(), page.Upper())
			candWindow := traits.NewWindow(m.traits.Registry(), aliasAttrIDs, candLo, candHi)
			if !m.MemAttrCompatibility(candWindow, pageWindow) {
				return ErrIncompatibleAttrs
			}
		}

		if candLo < page.Lower() || candHi > page.Upper() {
			// Candidate exceeds the existing page: merge into a new page.
			if !isFlat && !page.CanAlias() {
				return ErrNotAliasable
			}
			merged := newPhysicalPage(candLo, candHi, req.CanAlias(), m.issueID())
			merged.Merge(page)
			m.removePage(page.ID())
			info.Page = merged.ID()
			m.tagAttributes(threadID, aliasAttrIDs, merged)
			m.addPhysicalPage(merged)
			m.stats.MergedPages++
			m.log.Debug("single overlap merged", "page", uint64(merged.ID()),
				"lower", merged.Lower(), "upper", merged.Upper())
			return nil
		}

		// Fully contained: reuse the existing page.
		if !isFlat {
			if !page.CanAlias() {
				return ErrNotAliasable
			}
			if !req.CanAlias() {
				page.SetCanAlias(false)
				m.aliasExclude.AddRange(page.Lower(), page.Upper())
				m.log.Debug("page narrowed to non-aliasable",
					"page", uint64(page.ID()), "aliasExclude", m.aliasExclude.String())
			}
		}
		info.Page = page.ID()
		m.tagAttributesRange(threadID, aliasAttrIDs, page.Lower(), page.Upper())
		m.log.Debug("single overlap contained", "page", uint64(page.ID()),
			"lower", candLo, "upper", candHi)
		return nil

	default:
		// Validate every overlapped page before mutating anything.
		for _, id := range overlapped {
			page := m.pages[id]
			if !req.ForceMemAttrs {
				pageWindow := m.traits.WindowOver(threadID, page.Lower(), page.Upper())
				candWindow := traits.NewWindow(m.traits.Registry(), aliasAttrIDs, candLo, candHi)
				if !m.MemAttrCompatibility(candWindow, pageWindow) {
					return ErrIncompatibleAttrs
				}
			}
			if !isFlat && !page.CanAlias() {
				return ErrNotAliasable
			}
		}

		merged := newPhysicalPage(candLo, candHi, req.CanAlias(), m.issueID())
		for _, id := range overlapped {
			merged.Merge(m.pages[id])
		}
		// Copy: removePage reslices m.index under the overlapped window.
		for _, id := range append([]PageID(nil), overlapped...) {
			m.removePage(id)
			m.stats.MergedPages++
		}
		info.Page = merged.ID()
		m.tagAttributes(threadID, aliasAttrIDs, merged)
		m.addPhysicalPage(merged)
		m.log.Debug("multiple overlap merged", "page", uint64(merged.ID()),
			"lower", merged.Lower(), "upper", merged.Upper(), "count", len(overlapped))
		return nil
	}
}

// SolveAliasConstraints picks a physical target for an alias allocation:
// allocated memory minus alias exclusions, trimmed to the architecture's
// maximum physical address, restricted to ranges carrying every required
// alias attribute, aligned to the requested granularity, chosen uniformly.
func (m *Manager) SolveAliasConstraints(threadID uint32, info *SizeInfo, req *Request) (uint64, bool) {
	m.requireInit("SolveAliasConstraints")

	candidates := m.allocated.Clone()
	candidates.SubtractSet(m.aliasExclude)
	if !candidates.IsEmpty() {
		maxPhysical := info.MaxPhysical()
		if upper := candidates.UpperBound(); upper > maxPhysical {
			candidates.SubRange(maxPhysical+1, upper)
		}
	}

	for _, attrID := range m.traitIDs(req.aliasAttributeNames()) {
		attrRanges := m.traits.TraitRanges(threadID, attrID)
		if attrRanges == nil {
			// Required attribute tags nothing; intersection is empty.
			return 0, false
		}
		candidates.ApplySet(attrRanges)
	}

	candidates.AlignWithPage(info.Type.Mask())
	if candidates.IsEmpty() {
		return 0, false
	}

	pageNum, ok := candidates.ChooseValue(m.rng)
	if !ok {
		return 0, false
	}
	return pageNum << info.Type.Shift(), true
}

// MemAttrCompatibility decides whether a candidate window may alias an
// existing page's window. An empty side is always compatible; otherwise the
// alias side must be declared compatible with the alloc side; incompatible
// by default.
func (m *Manager) MemAttrCompatibility(allocAttrs, aliasAttrs *traits.Window) bool {
	if allocAttrs.Empty() {
		return true
	}
	if aliasAttrs.Empty() {
		return true
	}
	return aliasAttrs.CompatibleWith(allocAttrs)
}

// CommitPage binds a virtual page to its backing physical page. A virtual
// page without a prior physical allocation is a fatal defect.
func (m *Manager) CommitPage(vp VirtualPage, size uint64) {
	m.requireInit("CommitPage")
	lo, hi := vp.PhysicalBounds()
	page := m.FindPhysicalPage(lo, hi)
	if page == nil {
		fail("unable_to_find_phys_page_for_commit",
			"no physical page backs [0x%x, 0x%x] (size 0x%x)", lo, hi, size)
	}
	page.AddPage(vp)
}

// HandleMemoryConstraintUpdate fans the update out to every physical page
// overlapping its range.
func (m *Manager) HandleMemoryConstraintUpdate(update ConstraintUpdate) {
	m.requireInit("HandleMemoryConstraintUpdate")
	first, last := m.overlapRange(update.PhysicalStart(), update.PhysicalEnd())
	for _, id := range m.index[first:last] {
		m.pages[id].HandleConstraintUpdate(update)
	}
}

// GetVirtualPage locates the virtual page of the given address space
// containing pa, or nil if pa is unallocated.
func (m *Manager) GetVirtualPage(pa uint64, space AddressSpace) VirtualPage {
	m.requireInit("GetVirtualPage")
	page := m.FindPhysicalPage(pa, pa)
	if page == nil {
		m.log.Warn("no physical page contains address", "pa", pa)
		return nil
	}
	return page.GetVirtualPage(pa, space)
}

// FindPhysicalPage returns the live page overlapping [lower, upper].
// More than one match violates the disjointness invariant and is fatal;
// no match returns nil with a warning.
func (m *Manager) FindPhysicalPage(lower, upper uint64) *PhysicalPage {
	m.requireInit("FindPhysicalPage")
	first, last := m.overlapRange(lower, upper)
	switch last - first {
	case 0:
		m.log.Warn("no physical page for range", "lower", lower, "upper", upper)
		return nil
	case 1:
		return m.pages[m.index[first]]
	}
	fail("find_physical_page_returned_multiple_pages",
		"multiple pages overlap [0x%x, 0x%x]", lower, upper)
	return nil
}

// FindPhysicalPageByID returns the live page with the given id, or nil.
func (m *Manager) FindPhysicalPageByID(id PageID) *PhysicalPage {
	m.requireInit("FindPhysicalPageByID")
	return m.pages[id]
}

// Stats returns a copy of the allocation counters.
func (m *Manager) Stats() Stats {
	return m.stats
}

// Pages returns the live pages in address order. The pages are shared;
// callers must not mutate them.
func (m *Manager) Pages() []*PhysicalPage {
	out := make([]*PhysicalPage, len(m.index))
	for i, id := range m.index {
		out[i] = m.pages[id]
	}
	return out
}

// Boundary returns a clone of the legal boundary set.
func (m *Manager) Boundary() *rangeset.Set { return m.boundary.Clone() }

// FreeRanges returns a clone of the free set.
func (m *Manager) FreeRanges() *rangeset.Set { return m.free.Clone() }

// AllocatedRanges returns a clone of the allocated set.
func (m *Manager) AllocatedRanges() *rangeset.Set { return m.allocated.Clone() }

// AliasExcludeRanges returns a clone of the alias-exclude set.
func (m *Manager) AliasExcludeRanges() *rangeset.Set { return m.aliasExclude.Clone() }

func (m *Manager) issueID() PageID {
	id := m.nextID
	m.nextID++
	return id
}

// overlapRange returns the half-open window [first, last) of index entries
// whose pages overlap [lo, hi]. Sortedness and disjointness make the
// overlapping pages contiguous in the index.
func (m *Manager) overlapRange(lo, hi uint64) (first, last int) {
	first = sort.Search(len(m.index), func(i int) bool {
		return m.pages[m.index[i]].Upper() >= lo
	})
	last = sort.Search(len(m.index), func(i int) bool {
		return m.pages[m.index[i]].Lower() > hi
	})
	if last < first {
		last = first
	}
	return first, last
}

// addPhysicalPage inserts the page into the arena and index and updates
// the four range sets and every aligned-free cache.
func (m *Manager) addPhysicalPage(page *PhysicalPage) {
	pos := sort.Search(len(m.index), func(i int) bool {
		return m.pages[m.index[i]].Lower() >= page.Lower()
	})
	m.index = append(m.index, 0)
	copy(m.index[pos+1:], m.index[pos:])
	m.index[pos] = page.ID()
	m.pages[page.ID()] = page

	m.free.SubRange(page.Lower(), page.Upper())
	m.allocated.AddRange(page.Lower(), page.Upper())
	if !page.CanAlias() {
		m.aliasExclude.AddRange(page.Lower(), page.Upper())
	}
	m.updateAlignedFree(page.Lower(), page.Upper())
}

// removePage erases a merged-away page from the arena and index. Its range
// stays allocated; ownership transferred to the absorbing page.
func (m *Manager) removePage(id PageID) {
	for i, indexed := range m.index {
		if indexed == id {
			m.index = append(m.index[:i], m.index[i+1:]...)
			break
		}
	}
	delete(m.pages, id)
}

// updateAlignedFree subtracts every page number touching [lo, hi] from the
// per-granularity caches.
func (m *Manager) updateAlignedFree(lo, hi uint64) {
	for _, g := range Granularities() {
		shift := g.Shift()
		m.alignedFree[g].SubRange(lo>>shift, hi>>shift)
	}
}

// traitIDs interns the attribute names into registry ids.
func (m *Manager) traitIDs(names []string) []traits.ID {
	ids := make([]traits.ID, len(names))
	for i, name := range names {
		ids[i] = m.traits.Registry().ResolveTraitID(name)
	}
	return ids
}

// tagAttributes tags the page's range with each attribute.
func (m *Manager) tagAttributes(threadID uint32, ids []traits.ID, page *PhysicalPage) {
	m.tagAttributesRange(threadID, ids, page.Lower(), page.Upper())
}

func (m *Manager) tagAttributesRange(threadID uint32, ids []traits.ID, lo, hi uint64) {
	for _, id := range ids {
		m.traits.AddTrait(threadID, id, lo, hi)
	}
}
