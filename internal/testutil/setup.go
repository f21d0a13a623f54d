// Package testutil provides shared builders for allocation-engine tests:
// seeded managers, canned choice adapters and stub virtual pages.
package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/verigen/physmem/mem/phys"
	"github.com/verigen/physmem/mem/rangeset"
	"github.com/verigen/physmem/mem/traits"
)

// DefaultSeed keeps tests reproducible; individual tests override it when
// probing random placement behavior.
const DefaultSeed = 42

// RNG returns a deterministic random source for the given seed.
func RNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// FixedChoices is a ChoicesAdapter always answering the same value.
type FixedChoices struct {
	Value int
}

func (c FixedChoices) WeightedChoice(string) int {
	return c.Value
}

// RecordingChoices records the choice names consulted, answering Value.
type RecordingChoices struct {
	Value int
	Names []string
}

func (c *RecordingChoices) WeightedChoice(name string) int {
	c.Names = append(c.Names, name)
	return c.Value
}

// SetupManager returns an initialized manager over usable=boundary=[lo, hi]
// with a fresh traits manager and a deterministic RNG.
func SetupManager(t *testing.T, lo, hi uint64) (*phys.Manager, *traits.Manager) {
	t.Helper()
	tm := traits.NewManager(traits.NewRegistry())
	m := phys.NewManager(tm, RNG(DefaultSeed), nil)
	mem := rangeset.NewFromRange(lo, hi)
	m.Initialize(mem, mem.Clone())
	return m, tm
}

// StubVirtualPage is a minimal VirtualPage for backlink and fanout tests.
type StubVirtualPage struct {
	AddressSpace phys.AddressSpace
	Lower        uint64
	Upper        uint64
	Updates      []phys.ConstraintUpdate
}

func (s *StubVirtualPage) Space() phys.AddressSpace { return s.AddressSpace }

func (s *StubVirtualPage) PhysicalBounds() (uint64, uint64) { return s.Lower, s.Upper }

func (s *StubVirtualPage) HandleConstraintUpdate(u phys.ConstraintUpdate) {
	s.Updates = append(s.Updates, u)
}

// Update is a simple ConstraintUpdate over one physical range.
type Update struct {
	Lower uint64
	Upper uint64
}

func (u Update) PhysicalStart() uint64 { return u.Lower }

func (u Update) PhysicalEnd() uint64 { return u.Upper }
