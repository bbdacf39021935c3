package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"serverhub/internal/domain"
)

const historyLimit = 50

// historyModel shows the journaled commands for one server.
type historyModel struct {
	serverID string
	viewport viewport.Model
	records  []domain.ActionRecord
	err      error
	loaded   bool
	width    int
	height   int
}

type historyMsg struct {
	records []domain.ActionRecord
	err     error
}

type historyCloseMsg struct{}

func newHistoryModel(serverID string, width, height int) historyModel {
	h := historyModel{serverID: serverID}
	h.resize(width, height)
	return h
}

func loadHistory(journal domain.ActionRepository, serverID string) tea.Cmd {
	return func() tea.Msg {
		records, err := journal.ListActions(serverID, historyLimit)
		return historyMsg{records: records, err: err}
	}
}

func (h *historyModel) resize(width, height int) {
	h.width = width
	h.height = height
	h.viewport = viewport.New(max(width-8, 20), max(height-8, 5))
	h.viewport.SetContent(h.render())
}

func (h historyModel) Update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyMsg:
		h.loaded = true
		h.records = msg.records
		h.err = msg.err
		h.viewport.SetContent(h.render())
		return h, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "enter":
			return h, func() tea.Msg { return historyCloseMsg{} }
		}
	}

	var cmd tea.Cmd
	h.viewport, cmd = h.viewport.Update(msg)
	return h, cmd
}

func (h historyModel) render() string {
	if h.err != nil {
		return errorStyle.Render(h.err.Error())
	}
	if !h.loaded {
		return "loading..."
	}
	if len(h.records) == 0 {
		return helpStyle.Render("no commands recorded")
	}

	var b strings.Builder
	for _, rec := range h.records {
		took := "-"
		if rec.FinishedAt != nil {
			took = rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
		}
		line := fmt.Sprintf("%s  %-6s  %-9s  %8s", rec.StartedAt.Local().Format("2006-01-02 15:04:05"), rec.Action, rec.Outcome, took)
		if rec.Outcome == domain.OutcomeFailed {
			line = errorStyle.Render(line + "  " + rec.Error)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (h historyModel) View() string {
	title := headerStyle.Width(h.width).Render("HISTORY: " + h.serverID)
	body := baseStyle.Width(h.width - 4).Render(h.viewport.View())
	footer := footerStyle.Width(h.width - 4).Render("↑/↓: scroll • esc: back")
	return lipgloss.JoinVertical(lipgloss.Center, title, body, footer)
}
