// Package sim drives the allocation engine with seeded synthetic request
// streams, standing in for the surrounding instruction-stream generator.
// It is consumed by the physctl and memexplorer tools and by reproduction
// tests.
package sim

import (
	"log/slog"
	"math/rand/v2"

	"github.com/verigen/physmem/mem/phys"
	"github.com/verigen/physmem/mem/rangeset"
	"github.com/verigen/physmem/mem/traits"
)

// Config shapes one simulated generation run.
type Config struct {
	// Seed drives every random decision; equal seeds replay identically.
	Seed uint64

	// Ops is the number of page requests to issue.
	Ops int

	// MemSize is the size in bytes of the usable physical memory,
	// starting at address 0.
	MemSize uint64

	// AliasPercent is the chance (0-100) that a request tries aliasing
	// before fresh allocation.
	AliasPercent int

	// Logger may be nil to discard engine logging.
	Logger *slog.Logger
}

// Op records one issued request and its outcome.
type Op struct {
	VA     uint64
	Flat   bool
	Forced bool
	Instr  bool
	Attr   string
	OK     bool
	Start  uint64
	Page   phys.PageID
}

// Result is a finished run: the engine state plus the request trace.
type Result struct {
	Manager *phys.Manager
	Traits  *traits.Manager
	Trace   []Op
}

// weightedChoices answers the aliasing-order choices with the configured
// probability.
type weightedChoices struct {
	rng     *rand.Rand
	percent int
}

func (c *weightedChoices) WeightedChoice(string) int {
	if c.rng.IntN(100) < c.percent {
		return 1
	}
	return 0
}

// attrPool is the attribute mix a run tags allocations with. Device and
// normal memory are declared mutually exclusive, so the stream exercises
// the compatibility failure paths.
var attrPool = [][]string{
	nil,
	{"NormalCacheable"},
	{"NormalNonCacheable"},
	{"Device"},
	{"NormalCacheable", "Secure"},
}

// Run executes one simulated request stream and returns the engine state
// and trace.
func Run(cfg Config) *Result {
	if cfg.Ops <= 0 {
		cfg.Ops = 256
	}
	if cfg.MemSize == 0 {
		cfg.MemSize = 1 << 24
	}

	reg := traits.NewRegistry()
	reg.AddExclusiveGroup("Device", "NormalCacheable", "NormalNonCacheable")
	tm := traits.NewManager(reg)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	m := phys.NewManager(tm, rng, cfg.Logger)
	usable := rangeset.NewFromRange(0, cfg.MemSize-1)
	m.Initialize(usable, usable.Clone())

	choices := &weightedChoices{rng: rng, percent: cfg.AliasPercent}
	pageSpan := cfg.MemSize >> phys.Size4K.Shift()

	res := &Result{Manager: m, Traits: tm}
	for range cfg.Ops {
		attrs := attrPool[rng.IntN(len(attrPool))]
		req := &phys.Request{
			FlatMap:    rng.IntN(4) == 0,
			ForceAlias: rng.IntN(10) == 0,
			NoAlias:    rng.IntN(16) == 0,
			InstrAddr:  rng.IntN(3) == 0,
			ImplAttrs:  attrs,
		}
		va := rng.Uint64N(pageSpan) << phys.Size4K.Shift()
		info := phys.NewSizeInfo(phys.Size4K)

		ok := m.AllocatePage(0, va, 0, req, info, choices)
		op := Op{
			VA:     va,
			Flat:   req.FlatMap,
			Forced: req.ForceAlias,
			Instr:  req.InstrAddr,
			OK:     ok,
		}
		if len(attrs) > 0 {
			op.Attr = attrs[0]
		}
		if ok {
			op.Start = info.Start
			op.Page = info.Page
		}
		res.Trace = append(res.Trace, op)
	}
	return res
}
