package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire UI
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	header := m.renderHeader()

	var content string
	if m.showTrace {
		content = m.renderTrace()
	} else {
		content = lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.renderPagePane(),
			m.renderRangePane(),
		)
	}

	status := m.renderStatus()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		status,
	)
}

// renderHeader renders the title with the run parameters
func (m Model) renderHeader() string {
	title := headerStyle.Render("Physical Memory Explorer")
	run := seedStyle.Render(fmt.Sprintf(
		"seed=%d ops=%d mem=%#x", m.cfg.Seed, m.cfg.Ops, m.cfg.MemSize))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", run)
}

// renderPagePane renders the scrollable physical page list
func (m Model) renderPagePane() string {
	h := m.listHeight()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Physical Pages (%d)\n", len(m.pages)))

	end := m.offset + h
	if end > len(m.pages) {
		end = len(m.pages)
	}
	start := m.offset
	if m.focusedPane != PagePane {
		start, end = 0, min(h, len(m.pages))
	}

	for i := start; i < end; i++ {
		p := m.pages[i]
		alias := " "
		if !p.CanAlias {
			alias = "!"
		}
		line := fmt.Sprintf("#%-5d [%#012x, %#012x] %s", p.ID, p.Lower, p.Upper, alias)
		if m.focusedPane == PagePane && i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.pages) == 0 {
		b.WriteString("  (no pages allocated)\n")
	}

	style := paneStyle
	if m.focusedPane == PagePane {
		style = activePaneStyle
	}
	return style.Width(m.paneWidth()).Render(strings.TrimRight(b.String(), "\n"))
}

// renderRangePane renders the bookkeeping range sets, plus detail on the
// selected page when the page pane is focused
func (m Model) renderRangePane() string {
	var b strings.Builder

	if p := m.selectedPage(); p != nil {
		b.WriteString("Selected Page\n")
		b.WriteString(fmt.Sprintf("  ID:        %d\n", p.ID))
		b.WriteString(fmt.Sprintf("  Range:     [%#x, %#x]\n", p.Lower, p.Upper))
		b.WriteString(fmt.Sprintf("  Size:      %#x bytes\n", p.Upper-p.Lower+1))
		b.WriteString(fmt.Sprintf("  Aliasable: %v\n\n", p.CanAlias))
	}

	b.WriteString("Bookkeeping\n")
	for i, r := range m.rangeRows {
		line := fmt.Sprintf("  %-15s %s", r.Label+":", truncate(r.Ranges, m.paneWidth()-20))
		if m.focusedPane == RangePane && i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := paneStyle
	if m.focusedPane == RangePane {
		style = activePaneStyle
	}
	return style.Width(m.paneWidth()).Render(strings.TrimRight(b.String(), "\n"))
}

// renderTrace renders the request trace list
func (m Model) renderTrace() string {
	h := m.listHeight()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Request Trace (%d ops)\n", len(m.result.Trace)))

	end := m.offset + h
	if end > len(m.result.Trace) {
		end = len(m.result.Trace)
	}
	for i := m.offset; i < end; i++ {
		op := m.result.Trace[i]
		kind := "data "
		if op.Instr {
			kind = "instr"
		}
		mode := "random"
		if op.Flat {
			mode = "flat  "
		}
		outcome := okStyle.Render(fmt.Sprintf("-> page #%d @ %#x", op.Page, op.Start))
		if !op.OK {
			outcome = failStyle.Render("-> failed")
		}
		line := fmt.Sprintf("%4d. %s %s va=%#012x %-20s %s",
			i, kind, mode, op.VA, op.Attr, outcome)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return paneStyle.Width(m.width - 4).Render(strings.TrimRight(b.String(), "\n"))
}

// renderStatus renders the stats summary and key hints
func (m Model) renderStatus() string {
	s := m.stats
	counts := fmt.Sprintf("new: %d/%d  alias: %d/%d  merged: %d",
		s.NewAllocations, s.NewAllocations+s.FailedNew,
		s.AliasAllocations, s.AliasAllocations+s.FailedAlias,
		s.MergedPages)
	hints := helpStyle.Render("tab: pane  t: trace  r: reseed  ?: help  q: quit")
	return statusStyle.Render(counts + "   " + hints)
}

// renderHelpOverlay renders the full-screen help
func (m Model) renderHelpOverlay() string {
	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("Physical Memory Explorer — Help"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"↑/k, ↓/j", "move selection"},
		{"pgup/pgdn", "page through lists"},
		{"g / G", "jump to top / bottom"},
		{"tab", "switch between pages and bookkeeping"},
		{"t", "toggle the request trace view"},
		{"r", "replay with the next seed"},
		{"?", "toggle this help"},
		{"q", "quit"},
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Render(fmt.Sprintf("%-12s", r[0])), r[1]))
	}
	b.WriteString("\nPages marked '!' refused aliasing and are excluded from alias targeting.\n")
	return b.String()
}

func (m Model) paneWidth() int {
	w := (m.width - 6) / 2
	if w < 40 {
		w = 40
	}
	return w
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
