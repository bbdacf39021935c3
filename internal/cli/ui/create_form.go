package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"serverhub/internal/server"
)

const (
	fieldName = iota
	fieldPort
	fieldMotd
	fieldGameMode
	fieldDifficulty
	fieldPersistence
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:        "Name",
	fieldPort:        "NodePort",
	fieldMotd:        "MOTD",
	fieldGameMode:    "Game mode",
	fieldDifficulty:  "Difficulty",
	fieldPersistence: "Persistence",
}

// CreateForm collects the create-server fields. Enter advances and submits
// from the last field; esc cancels.
type CreateForm struct {
	inputs []textinput.Model
	focus  int
	err    error
}

type formSubmitMsg struct{ opts server.Options }

type formCancelMsg struct{}

func NewCreateForm() CreateForm {
	defaults := server.DefaultOptions()
	values := [fieldCount]string{
		fieldName:        defaults.Name,
		fieldMotd:        defaults.Motd,
		fieldGameMode:    defaults.GameMode,
		fieldDifficulty:  defaults.Difficulty,
		fieldPersistence: "yes",
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 64
		ti.Width = 32
		ti.SetValue(values[i])
		inputs[i] = ti
	}
	inputs[fieldPort].Placeholder = "auto"
	inputs[fieldPort].CharLimit = 5
	inputs[fieldGameMode].Placeholder = strings.Join(server.GameModes, "|")
	inputs[fieldDifficulty].Placeholder = strings.Join(server.Difficulties, "|")
	inputs[fieldPersistence].Placeholder = "yes|no"
	inputs[fieldName].Focus()

	return CreateForm{inputs: inputs}
}

func (f CreateForm) Init() tea.Cmd {
	return textinput.Blink
}

func (f CreateForm) Update(msg tea.Msg) (CreateForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return f, func() tea.Msg { return formCancelMsg{} }
		case "tab", "down":
			return f, f.move(1)
		case "shift+tab", "up":
			return f, f.move(-1)
		case "enter":
			if f.focus < fieldCount-1 {
				return f, f.move(1)
			}
			opts, err := f.Options()
			if err != nil {
				f.err = err
				return f, nil
			}
			f.err = nil
			return f, func() tea.Msg { return formSubmitMsg{opts: opts} }
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f *CreateForm) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

// Options parses the form. Range and enum checks are left to the server
// package.
func (f CreateForm) Options() (server.Options, error) {
	opts := server.Options{
		Name:       strings.TrimSpace(f.inputs[fieldName].Value()),
		Motd:       f.inputs[fieldMotd].Value(),
		GameMode:   strings.TrimSpace(f.inputs[fieldGameMode].Value()),
		Difficulty: strings.TrimSpace(f.inputs[fieldDifficulty].Value()),
	}
	if opts.Name == "" {
		return opts, server.ErrNameRequired
	}

	port := strings.TrimSpace(f.inputs[fieldPort].Value())
	if port != "" && port != "auto" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return opts, fmt.Errorf("invalid port %q", port)
		}
		opts.Port = n
	}

	switch strings.ToLower(strings.TrimSpace(f.inputs[fieldPersistence].Value())) {
	case "", "y", "yes", "true":
	case "n", "no", "false":
		opts.NoPersistence = true
	default:
		return opts, fmt.Errorf("persistence must be yes or no")
	}
	return opts, nil
}

func (f CreateForm) View(width, height int) string {
	title := headerStyle.Width(width).Render("CREATE NEW SERVER")

	var b strings.Builder
	if f.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", f.err)))
		b.WriteString("\n\n")
	}
	for i, in := range f.inputs {
		b.WriteString(labelStyle.Render(fieldLabels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	body := baseStyle.
		Width(width - 4).
		Height(max(height-8, 8)).
		Render(b.String())

	footer := footerStyle.
		Width(width - 4).
		Render("tab/↑/↓: move • enter: next/submit • esc: cancel")

	return lipgloss.JoinVertical(lipgloss.Center,
		title,
		titleStyle.Render("New server"),
		body,
		footer,
	)
}
