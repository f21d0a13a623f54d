// Package traits tracks named memory attributes over physical address
// ranges and answers compatibility queries between tagged regions.
//
// A Registry interns attribute names to stable ids and records which
// attributes conflict (for example mutually exclusive memory types). A
// Manager associates attribute ids with address ranges, scoped either to a
// hardware-thread context or globally, and produces Window views used for
// alias compatibility checks.
package traits

import (
	"github.com/verigen/physmem/mem/rangeset"
)

// ID identifies an interned attribute name. The zero ID is never issued.
type ID uint32

// Registry interns attribute names and records declared conflicts.
type Registry struct {
	ids       map[string]ID
	names     []string
	conflicts map[ID]map[ID]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:       make(map[string]ID),
		conflicts: make(map[ID]map[ID]struct{}),
	}
}

// ResolveTraitID returns the id for name, interning it on first use.
func (r *Registry) ResolveTraitID(name string) ID {
	if id, ok := r.ids[name]; ok {
		return id
	}
	r.names = append(r.names, name)
	id := ID(len(r.names))
	r.ids[name] = id
	return id
}

// Lookup returns the id for name without interning.
func (r *Registry) Lookup(name string) (ID, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Name returns the name for id, or "" if id was never issued.
func (r *Registry) Name(id ID) string {
	if id == 0 || int(id) > len(r.names) {
		return ""
	}
	return r.names[id-1]
}

// AddConflict declares two attributes incompatible. The relation is
// symmetric.
func (r *Registry) AddConflict(a, b string) {
	ia := r.ResolveTraitID(a)
	ib := r.ResolveTraitID(b)
	r.addConflictIDs(ia, ib)
}

// AddExclusiveGroup declares every pair of the named attributes
// incompatible, e.g. the set of architectural memory types.
func (r *Registry) AddExclusiveGroup(names ...string) {
	ids := make([]ID, len(names))
	for i, name := range names {
		ids[i] = r.ResolveTraitID(name)
	}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			r.addConflictIDs(ids[i], ids[j])
		}
	}
}

func (r *Registry) addConflictIDs(a, b ID) {
	if a == b {
		return
	}
	if r.conflicts[a] == nil {
		r.conflicts[a] = make(map[ID]struct{})
	}
	if r.conflicts[b] == nil {
		r.conflicts[b] = make(map[ID]struct{})
	}
	r.conflicts[a][b] = struct{}{}
	r.conflicts[b][a] = struct{}{}
}

// Conflicts reports whether a and b are declared incompatible.
func (r *Registry) Conflicts(a, b ID) bool {
	_, ok := r.conflicts[a][b]
	return ok
}

// Manager tracks which address ranges carry which attributes. Ranges added
// with a thread id are scoped to that hardware-thread context; global
// ranges apply to every context.
type Manager struct {
	reg      *Registry
	global   map[ID]*rangeset.Set
	byThread map[uint32]map[ID]*rangeset.Set
}

// NewManager returns a manager backed by reg.
func NewManager(reg *Registry) *Manager {
	return &Manager{
		reg:      reg,
		global:   make(map[ID]*rangeset.Set),
		byThread: make(map[uint32]map[ID]*rangeset.Set),
	}
}

// Registry returns the backing registry.
func (m *Manager) Registry() *Registry {
	return m.reg
}

// AddTrait tags [lo, hi] with the attribute for the given thread context.
func (m *Manager) AddTrait(threadID uint32, id ID, lo, hi uint64) {
	perThread := m.byThread[threadID]
	if perThread == nil {
		perThread = make(map[ID]*rangeset.Set)
		m.byThread[threadID] = perThread
	}
	addTo(perThread, id, lo, hi)
}

// AddGlobalTrait tags [lo, hi] with the attribute for every thread context.
func (m *Manager) AddGlobalTrait(id ID, lo, hi uint64) {
	addTo(m.global, id, lo, hi)
}

func addTo(sets map[ID]*rangeset.Set, id ID, lo, hi uint64) {
	s := sets[id]
	if s == nil {
		s = rangeset.New()
		sets[id] = s
	}
	s.AddRange(lo, hi)
}

// TraitRanges returns the address ranges carrying the attribute as seen by
// the given thread context: its own tags merged with global ones. Returns
// nil when the attribute tags no range.
func (m *Manager) TraitRanges(threadID uint32, id ID) *rangeset.Set {
	var out *rangeset.Set
	if s := m.byThread[threadID][id]; s != nil {
		out = s.Clone()
	}
	if g := m.global[id]; g != nil {
		if out == nil {
			out = g.Clone()
		} else {
			out.MergeSet(g)
		}
	}
	return out
}

// WindowOver returns the view of every attribute intersecting [lo, hi] as
// seen by the given thread context, with ranges clipped to the window.
func (m *Manager) WindowOver(threadID uint32, lo, hi uint64) *Window {
	w := &Window{reg: m.reg, lo: lo, hi: hi, sets: make(map[ID]*rangeset.Set)}
	window := rangeset.NewFromRange(lo, hi)
	collect := func(sets map[ID]*rangeset.Set) {
		for id, s := range sets {
			if !s.Intersects(lo, hi) {
				continue
			}
			clipped := s.Clone()
			clipped.ApplySet(window)
			if prev := w.sets[id]; prev != nil {
				prev.MergeSet(clipped)
			} else {
				w.sets[id] = clipped
			}
		}
	}
	collect(m.global)
	collect(m.byThread[threadID])
	return w
}

// Window is the set of attributes carried by one address window, used for
// alias compatibility checks.
type Window struct {
	reg  *Registry
	lo   uint64
	hi   uint64
	sets map[ID]*rangeset.Set
}

// NewWindow builds a window where each listed attribute covers the whole of
// [lo, hi], the shape of a not-yet-committed allocation candidate.
func NewWindow(reg *Registry, ids []ID, lo, hi uint64) *Window {
	w := &Window{reg: reg, lo: lo, hi: hi, sets: make(map[ID]*rangeset.Set)}
	for _, id := range ids {
		if prev := w.sets[id]; prev != nil {
			prev.AddRange(lo, hi)
		} else {
			w.sets[id] = rangeset.NewFromRange(lo, hi)
		}
	}
	return w
}

// Empty reports whether the window carries no attributes.
func (w *Window) Empty() bool {
	return len(w.sets) == 0
}

// TraitIDs returns the attributes carried by the window, in no particular
// order.
func (w *Window) TraitIDs() []ID {
	ids := make([]ID, 0, len(w.sets))
	for id := range w.sets {
		ids = append(ids, id)
	}
	return ids
}

// CompatibleWith reports whether the window can alias other: no attribute
// carried here may overlap, in address terms, an attribute of other that
// the registry declares incompatible with it.
func (w *Window) CompatibleWith(other *Window) bool {
	for a, sa := range w.sets {
		for b, sb := range other.sets {
			if !w.reg.Conflicts(a, b) {
				continue
			}
			overlap := sa.Clone()
			overlap.ApplySet(sb)
			if !overlap.IsEmpty() {
				return false
			}
		}
	}
	return true
}
