package main

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/verigen/physmem/cmd/memexplorer/logger"
)

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Help overlay swallows everything except dismissal and quit.
		if m.showHelp {
			switch {
			case key.Matches(msg, m.keys.Esc), key.Matches(msg, m.keys.Help):
				m.showHelp = false
				return m, nil
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, m.keys.Trace):
			m.showTrace = !m.showTrace
			m.cursor = 0
			m.offset = 0
			return m, nil

		case key.Matches(msg, m.keys.Reseed):
			next := m.cfg.Seed + 1
			logger.Info("rerunning simulation", "seed", next)
			m.rerun(next)
			return m, nil

		case key.Matches(msg, m.keys.Tab):
			if m.focusedPane == PagePane {
				m.focusedPane = RangePane
			} else {
				m.focusedPane = PagePane
			}
			m.cursor = 0
			m.offset = 0
			return m, nil

		case key.Matches(msg, m.keys.Up):
			m.moveCursor(-1)
			return m, nil

		case key.Matches(msg, m.keys.Down):
			m.moveCursor(1)
			return m, nil

		case key.Matches(msg, m.keys.PageUp):
			m.moveCursor(-m.listHeight())
			return m, nil

		case key.Matches(msg, m.keys.PageDown):
			m.moveCursor(m.listHeight())
			return m, nil

		case key.Matches(msg, m.keys.Home):
			m.cursor = 0
			m.offset = 0
			return m, nil

		case key.Matches(msg, m.keys.End):
			m.cursor = m.rowCount() - 1
			if m.cursor < 0 {
				m.cursor = 0
			}
			m.clampOffset()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil
	}

	return m, nil
}

// moveCursor shifts the selection by delta, clamped to the focused list.
func (m *Model) moveCursor(delta int) {
	count := m.rowCount()
	if count == 0 {
		m.cursor = 0
		m.offset = 0
		return
	}

	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= count {
		m.cursor = count - 1
	}
	m.clampOffset()
}

// clampOffset keeps the cursor inside the visible window.
func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
