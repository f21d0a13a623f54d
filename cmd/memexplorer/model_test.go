package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"github.com/verigen/physmem/mem/sim"
)

func testConfig() sim.Config {
	return sim.Config{Seed: 9, Ops: 64, MemSize: 1 << 20, AliasPercent: 30}
}

// TestModelLoadsSimulation verifies the model reflects the finished run.
func TestModelLoadsSimulation(t *testing.T) {
	m := NewModel(testConfig())

	require.NotNil(t, m.result)
	require.Len(t, m.result.Trace, 64)
	require.NotEmpty(t, m.pages)
	require.Len(t, m.rangeRows, 4)
	require.Equal(t, "Boundary", m.rangeRows[0].Label)
}

// TestHelpToggle toggles the help overlay with '?' and dismisses with Esc.
func TestHelpToggle(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendWindowSize(120, 40)

	require.False(t, h.GetModel().showHelp)

	h.SendKeyRune('?')
	require.True(t, h.GetModel().showHelp)

	h.SendKey(tea.KeyEsc)
	require.False(t, h.GetModel().showHelp)
}

// TestCursorNavigation checks movement and clamping in the page list.
func TestCursorNavigation(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendWindowSize(120, 40)

	h.SendKeyRune('k')
	require.Equal(t, 0, h.GetModel().cursor, "cursor must not go above the first row")

	h.SendKeyRune('j')
	h.SendKeyRune('j')
	require.Equal(t, 2, h.GetModel().cursor)

	h.SendKeyRune('G')
	require.Equal(t, len(h.GetModel().pages)-1, h.GetModel().cursor)

	h.SendKeyRune('g')
	require.Equal(t, 0, h.GetModel().cursor)
}

// TestPaneSwitchResetsCursor switches panes with Tab.
func TestPaneSwitchResetsCursor(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendWindowSize(120, 40)

	h.SendKeyRune('j')
	h.SendKey(tea.KeyTab)

	m := h.GetModel()
	require.Equal(t, RangePane, m.focusedPane)
	require.Equal(t, 0, m.cursor)
}

// TestReseedReplaysDeterministically reruns with 'r' and confirms the seed
// advanced and the layout matches a fresh run under the same seed.
func TestReseedReplaysDeterministically(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendKeyRune('r')

	m := h.GetModel()
	require.Equal(t, uint64(10), m.cfg.Seed)

	cfg := testConfig()
	cfg.Seed = 10
	fresh := sim.Run(cfg)
	require.Equal(t, fresh.Manager.Stats(), m.stats)
}

// TestTraceToggle switches the trace view on and off with 't'.
func TestTraceToggle(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendWindowSize(120, 40)

	h.SendKeyRune('t')
	require.True(t, h.GetModel().showTrace)

	h.SendKeyRune('t')
	require.False(t, h.GetModel().showTrace)
}

// TestViewRendersWithoutPanic exercises every view mode.
func TestViewRendersWithoutPanic(t *testing.T) {
	h := NewTestHelper(testConfig())
	h.SendWindowSize(120, 40)

	require.Contains(t, h.GetModel().View(), "Physical Pages")

	h.SendKeyRune('t')
	require.Contains(t, h.GetModel().View(), "Request Trace")

	h.SendKeyRune('t')
	h.SendKeyRune('?')
	require.Contains(t, h.GetModel().View(), "Help")
}
