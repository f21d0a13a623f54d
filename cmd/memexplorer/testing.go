package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/verigen/physmem/mem/sim"
)

// TestHelper drives the model through Update calls the way the bubbletea
// runtime would, keeping the current model between messages.
type TestHelper struct {
	model Model
}

// NewTestHelper builds a model over a small deterministic run.
func NewTestHelper(cfg sim.Config) *TestHelper {
	return &TestHelper{model: NewModel(cfg)}
}

// GetModel returns the current model state.
func (h *TestHelper) GetModel() Model {
	return h.model
}

// SendKeyRune sends a single printable key.
func (h *TestHelper) SendKeyRune(r rune) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// SendKey sends a special key such as tea.KeyTab or tea.KeyEsc.
func (h *TestHelper) SendKey(k tea.KeyType) {
	h.send(tea.KeyMsg{Type: k})
}

// SendWindowSize sends a terminal resize.
func (h *TestHelper) SendWindowSize(width, height int) {
	h.send(tea.WindowSizeMsg{Width: width, Height: height})
}

func (h *TestHelper) send(msg tea.Msg) {
	updated, _ := h.model.Update(msg)
	h.model = updated.(Model)
}
