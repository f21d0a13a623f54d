package phys

// PageID identifies one live physical page. Ids are issued in strictly
// increasing order per manager instance and never reused; 0 is the invalid
// id.
type PageID uint64

// AddressSpace is an opaque handle identifying one virtual address space.
// Only identity comparison is used.
type AddressSpace interface{}

// ConstraintUpdate describes a memory-constraint change over a physical
// range, fanned out to the virtual pages mapped onto it.
type ConstraintUpdate interface {
	PhysicalStart() uint64
	PhysicalEnd() uint64
}

// VirtualPage is the engine's view of a virtual mapping committed onto a
// physical page. Implementations are owned by the paging layer; the engine
// stores them as non-owning backlinks.
type VirtualPage interface {
	// Space returns the address space the mapping belongs to.
	Space() AddressSpace

	// PhysicalBounds returns the inclusive physical range backing the
	// mapping.
	PhysicalBounds() (lower, upper uint64)

	// HandleConstraintUpdate applies a memory-constraint change to the
	// mapping's own bookkeeping.
	HandleConstraintUpdate(update ConstraintUpdate)
}

// PhysicalPage is one reserved contiguous physical interval. Ranges of two
// distinct live pages never overlap. Pages are created by allocation or by
// merging, and destroyed only by being merged away.
type PhysicalPage struct {
	id       PageID
	lower    uint64
	upper    uint64
	canAlias bool
	pages    []VirtualPage
}

func newPhysicalPage(lower, upper uint64, canAlias bool, id PageID) *PhysicalPage {
	return &PhysicalPage{id: id, lower: lower, upper: upper, canAlias: canAlias}
}

// ID returns the page's stable id.
func (p *PhysicalPage) ID() PageID { return p.id }

// Lower returns the inclusive lower bound.
func (p *PhysicalPage) Lower() uint64 { return p.lower }

// Upper returns the inclusive upper bound.
func (p *PhysicalPage) Upper() uint64 { return p.upper }

// CanAlias reports whether further aliases may target the page.
func (p *PhysicalPage) CanAlias() bool { return p.canAlias }

// SetCanAlias narrows the page's aliasability. The flag only ever moves
// from aliasable to non-aliasable.
func (p *PhysicalPage) SetCanAlias(canAlias bool) {
	if !canAlias {
		p.canAlias = false
	}
}

// Contains reports whether pa falls inside the page.
func (p *PhysicalPage) Contains(pa uint64) bool {
	return p.lower <= pa && pa <= p.upper
}

// Overlaps reports whether [lo, hi] intersects the page.
func (p *PhysicalPage) Overlaps(lo, hi uint64) bool {
	return p.lower <= hi && lo <= p.upper
}

// Merge absorbs other: bounds widen to the union and all of other's
// virtual-page backlinks transfer. The caller must remove other from the
// manager's index afterwards; ownership of its range fully transfers.
func (p *PhysicalPage) Merge(other *PhysicalPage) {
	if other.lower < p.lower {
		p.lower = other.lower
	}
	if other.upper > p.upper {
		p.upper = other.upper
	}
	p.pages = append(p.pages, other.pages...)
	other.pages = nil
}

// AddPage records a non-owning backlink to a committed virtual page.
func (p *PhysicalPage) AddPage(vp VirtualPage) {
	p.pages = append(p.pages, vp)
}

// GetVirtualPage returns the virtual page of the given address space whose
// backing contains pa, or nil.
func (p *PhysicalPage) GetVirtualPage(pa uint64, space AddressSpace) VirtualPage {
	for _, vp := range p.pages {
		lo, hi := vp.PhysicalBounds()
		if vp.Space() == space && lo <= pa && pa <= hi {
			return vp
		}
	}
	return nil
}

// HandleConstraintUpdate forwards the update to every committed virtual
// page.
func (p *PhysicalPage) HandleConstraintUpdate(update ConstraintUpdate) {
	for _, vp := range p.pages {
		vp.HandleConstraintUpdate(update)
	}
}
