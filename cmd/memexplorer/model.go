package main

import (
	"github.com/verigen/physmem/mem/phys"
	"github.com/verigen/physmem/mem/sim"

	tea "github.com/charmbracelet/bubbletea"
)

// Pane represents which pane is focused
type Pane int

const (
	PagePane Pane = iota
	RangePane
)

// pageRow is one physical page, flattened for display.
type pageRow struct {
	ID       phys.PageID
	Lower    uint64
	Upper    uint64
	CanAlias bool
}

// rangeRow is one labeled bookkeeping set, flattened for display.
type rangeRow struct {
	Label  string
	Ranges string
}

// Model is the main application model
type Model struct {
	cfg    sim.Config
	result *sim.Result

	pages     []pageRow
	rangeRows []rangeRow
	stats     phys.Stats

	keys        KeyMap
	focusedPane Pane
	width       int
	height      int

	cursor    int // selected row in the focused pane
	offset    int // first visible page row
	showHelp  bool
	showTrace bool
}

// NewModel runs one simulation and builds the browsing model around it.
func NewModel(cfg sim.Config) Model {
	m := Model{
		cfg:  cfg,
		keys: DefaultKeyMap(),
	}
	m.rerun(cfg.Seed)
	return m
}

// rerun replays the request stream under the given seed and reloads every
// displayed row.
func (m *Model) rerun(seed uint64) {
	m.cfg.Seed = seed
	m.result = sim.Run(m.cfg)

	mgr := m.result.Manager
	m.stats = mgr.Stats()

	m.pages = m.pages[:0]
	for _, p := range mgr.Pages() {
		m.pages = append(m.pages, pageRow{
			ID:       p.ID(),
			Lower:    p.Lower(),
			Upper:    p.Upper(),
			CanAlias: p.CanAlias(),
		})
	}

	m.rangeRows = []rangeRow{
		{Label: "Boundary", Ranges: mgr.Boundary().String()},
		{Label: "Free", Ranges: mgr.FreeRanges().String()},
		{Label: "Allocated", Ranges: mgr.AllocatedRanges().String()},
		{Label: "Alias-excluded", Ranges: mgr.AliasExcludeRanges().String()},
	}

	m.cursor = 0
	m.offset = 0
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// selectedPage returns the page under the cursor, or nil when the list is
// empty or another pane is focused.
func (m Model) selectedPage() *pageRow {
	if m.focusedPane != PagePane || len(m.pages) == 0 {
		return nil
	}
	if m.cursor < 0 || m.cursor >= len(m.pages) {
		return nil
	}
	return &m.pages[m.cursor]
}

// rowCount is the length of the list the cursor currently scrolls over.
func (m Model) rowCount() int {
	if m.showTrace {
		return len(m.result.Trace)
	}
	if m.focusedPane == PagePane {
		return len(m.pages)
	}
	return len(m.rangeRows)
}

// listHeight is how many rows fit in the page list viewport.
func (m Model) listHeight() int {
	h := m.height - 8 // header, borders, status
	if h < 3 {
		h = 3
	}
	return h
}
