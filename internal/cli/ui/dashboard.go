package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"serverhub/internal/confirm"
	"serverhub/internal/domain"
	"serverhub/internal/roster"
	"serverhub/internal/server"
	"serverhub/internal/view"
	"serverhub/pkg/sdk"
)

const messageTTL = 3 * time.Second

// Dispatcher claims a busy flag in Begin and sends the command when run is
// called.
type Dispatcher interface {
	Begin(id string, action domain.Action) (run func(context.Context) error, ok bool)
	IsBusy(id string, action domain.Action) bool
}

type Creator interface {
	Create(ctx context.Context, opts server.Options) (sdk.CreateServerRequest, *sdk.CreateServerResponse, error)
}

// Deps are the services the dashboard drives. Journal may be nil.
type Deps struct {
	Dispatcher Dispatcher
	Creator    Creator
	Journal    domain.ActionRepository
	Confirm    *confirm.Dialog
	Updates    <-chan roster.Snapshot
	Gateway    string
}

type mode int

const (
	modeTable mode = iota
	modeCreate
	modeHistory
)

type Model struct {
	deps     Deps
	table    table.Model
	spinner  spinner.Model
	snapshot roster.Snapshot
	rows     []view.Row
	loaded   bool
	mode     mode
	form     CreateForm
	history  historyModel
	message  string
	isError  bool
	msgSeq   int
	width    int
	height   int
}

type snapshotMsg roster.Snapshot

type watchClosedMsg struct{}

type actionDoneMsg struct {
	action domain.Action
	id     string
	err    error
}

type createDoneMsg struct {
	name string
	port int
	err  error
}

type clearMessageMsg struct{ seq int }

func NewModel(deps Deps) Model {
	columns := []table.Column{
		{Title: "Status", Width: 9},
		{Title: "ID", Width: 20},
		{Title: "Port", Width: 6},
		{Title: "MOTD", Width: 24},
		{Title: "Players", Width: 8},
		{Title: "Busy", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		deps:    deps,
		table:   t,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.deps.Updates), m.spinner.Tick)
}

func waitForSnapshot(updates <-chan roster.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return watchClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 10)
		m.table.SetHeight(max(msg.Height-14, 3))
		m.history.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.loaded = true
		m.snapshot = roster.Snapshot(msg)
		m.refresh()
		return m, waitForSnapshot(m.deps.Updates)

	case watchClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case actionDoneMsg:
		m.refresh()
		if msg.err != nil {
			return m, m.flash(msg.err.Error(), true)
		}
		return m, m.flash(fmt.Sprintf("%s %s: done", msg.action, msg.id), false)

	case createDoneMsg:
		if msg.err != nil {
			return m, m.flash(msg.err.Error(), true)
		}
		return m, m.flash(fmt.Sprintf("created %s on port %d", msg.name, msg.port), false)

	case clearMessageMsg:
		if msg.seq == m.msgSeq {
			m.message = ""
			m.isError = false
		}
		return m, nil

	case formSubmitMsg:
		m.mode = modeTable
		return m, m.create(msg.opts)

	case formCancelMsg:
		m.mode = modeTable
		return m, nil

	case historyMsg:
		m.history, _ = m.history.Update(msg)
		return m, nil

	case historyCloseMsg:
		m.mode = modeTable
		return m, nil
	}

	switch m.mode {
	case modeCreate:
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	case modeHistory:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKey(key); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(key tea.KeyMsg) (tea.Cmd, bool) {
	if _, pending := m.deps.Confirm.Pending(); pending {
		switch key.String() {
		case "y":
			id, err := m.deps.Confirm.Confirm()
			if err != nil {
				return m.flash(err.Error(), true), true
			}
			return m.dispatch(domain.ActionDelete, id), true
		case "n", "esc":
			m.deps.Confirm.Cancel()
			return m.flash("delete cancelled", false), true
		case "ctrl+c":
			return tea.Quit, true
		}
		return nil, true
	}

	switch key.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case "s":
		return m.act(domain.ActionStart), true
	case "x":
		return m.act(domain.ActionStop), true
	case "d":
		m.refresh()
		row, ok := m.selected()
		if !ok {
			return nil, true
		}
		if !row.CanDelete {
			return m.flash(refusal(row, domain.ActionDelete), true), true
		}
		m.deps.Confirm.Request(row.Server.ID)
		return nil, true
	case "c":
		m.mode = modeCreate
		m.form = NewCreateForm()
		return m.form.Init(), true
	case "enter", "h":
		row, ok := m.selected()
		if !ok || m.deps.Journal == nil {
			return nil, true
		}
		m.mode = modeHistory
		m.history = newHistoryModel(row.Server.ID, m.width, m.height)
		return loadHistory(m.deps.Journal, row.Server.ID), true
	}
	return nil, false
}

func (m *Model) act(action domain.Action) tea.Cmd {
	m.refresh()
	row, ok := m.selected()
	if !ok {
		return nil
	}
	if !row.Can(action) {
		return m.flash(refusal(row, action), true)
	}
	return m.dispatch(action, row.Server.ID)
}

func refusal(row view.Row, action domain.Action) string {
	if (row.Busy.Start && action == domain.ActionStart) ||
		(row.Busy.Stop && action == domain.ActionStop) ||
		(row.Busy.Delete && action == domain.ActionDelete) {
		return fmt.Sprintf("%s %s already in progress", action, row.Server.ID)
	}
	return fmt.Sprintf("cannot %s %s while %s", action, row.Server.ID, row.Server.Status)
}

// dispatch holds the busy flag from this point on, so a repeated key press
// is refused even before the command goroutine runs.
func (m *Model) dispatch(action domain.Action, id string) tea.Cmd {
	run, ok := m.deps.Dispatcher.Begin(id, action)
	if !ok {
		return m.flash(fmt.Sprintf("%s %s already in progress", action, id), true)
	}
	m.refresh()
	m.message = fmt.Sprintf("%s %s...", action, id)
	m.isError = false
	return func() tea.Msg {
		err := run(context.Background())
		return actionDoneMsg{action: action, id: id, err: err}
	}
}

func (m *Model) create(opts server.Options) tea.Cmd {
	m.message = fmt.Sprintf("creating %s...", opts.Name)
	m.isError = false
	creator := m.deps.Creator
	return func() tea.Msg {
		req, _, err := creator.Create(context.Background(), opts)
		return createDoneMsg{name: req.ServerName, port: req.MinecraftServer.NodePort, err: err}
	}
}

func (m *Model) flash(text string, isError bool) tea.Cmd {
	m.msgSeq++
	m.message = text
	m.isError = isError
	seq := m.msgSeq
	return tea.Tick(messageTTL, func(time.Time) tea.Msg {
		return clearMessageMsg{seq: seq}
	})
}

func (m *Model) selected() (view.Row, bool) {
	row := m.table.SelectedRow()
	if len(row) < 2 {
		return view.Row{}, false
	}
	for _, r := range m.rows {
		if r.Server.ID == row[1] {
			return r, true
		}
	}
	return view.Row{}, false
}

// refresh rebuilds rows from the last snapshot and the live busy flags.
func (m *Model) refresh() {
	v := view.Build(m.snapshot, m.deps.Dispatcher, nil)
	m.rows = v.Rows

	rows := make([]table.Row, 0, len(v.Rows))
	for _, r := range v.Rows {
		rows = append(rows, table.Row{
			statusLabel(r.Server.Status),
			r.Server.ID,
			fmt.Sprintf("%d", r.Server.Port),
			r.Server.Description,
			view.FormatPlayers(r.Server.Players),
			m.busyLabel(r.Busy),
		})
	}
	m.table.SetRows(rows)
}

func (m Model) busyLabel(b view.Busy) string {
	if !b.Any() {
		return ""
	}
	var names []string
	if b.Start {
		names = append(names, "start")
	}
	if b.Stop {
		names = append(names, "stop")
	}
	if b.Delete {
		names = append(names, "delete")
	}
	return m.spinner.View() + " " + strings.Join(names, ",")
}

func statusLabel(s sdk.Status) string {
	switch {
	case s.Is(sdk.StatusRunning):
		return "🟢 run"
	case s.Is(sdk.StatusStopped):
		return "🔴 stop"
	case s.Is(sdk.StatusPending):
		return "🟡 pend"
	default:
		return "⚪ " + strings.ToLower(string(s))
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.mode {
	case modeCreate:
		return m.form.View(m.width, m.height)
	case modeHistory:
		return m.history.View()
	}

	title := headerStyle.Render("SERVERHUB")
	gateway := m.deps.Gateway
	if gateway == "" {
		gateway = "(not configured)"
	}
	hostInfo := subHeaderStyle.Render(fmt.Sprintf("Gateway: %s  |  Servers: %d", gateway, len(m.rows)))
	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, hostInfo))

	body := m.table.View()
	if !m.loaded {
		body = m.spinner.View() + " waiting for roster..."
	}
	tableContainer := baseStyle.
		Width(m.width - 4).
		Height(max(m.height-10, 5)).
		Render(body)

	footer := helpStyle.Render("↑/↓: navigate • s: start • x: stop • d: delete • c: create • enter: history • q: quit")
	if id, ok := m.deps.Confirm.Pending(); ok {
		footer = confirmStyle.Render(fmt.Sprintf("Delete %s? This cannot be undone. (y/n)", id))
	}
	if m.message != "" {
		style := messageStyle
		if m.isError {
			style = errorStyle
		}
		footer = style.Render(m.message) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Center,
		headerBox,
		tableContainer,
		footerStyle.Width(m.width-4).Render(footer),
	)
}

// Run blocks until the user quits.
func Run(deps Deps) error {
	program := tea.NewProgram(NewModel(deps), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
