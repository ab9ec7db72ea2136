package main

import (
	"fmt"
	"strings"

	"github.com/burntcarrot/otpad/commons"
	"github.com/burntcarrot/otpad/ot"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type (
	// serverMsg is a message read from the server connection.
	serverMsg commons.Message

	// disconnectedMsg reports that the server connection was lost.
	disconnectedMsg struct {
		err error
	}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	docStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

type model struct {
	input textinput.Model
	conn  ConnWriter

	id   string
	name string
	path string
	doc  *ot.Client

	users    string
	status   string
	width    int
	quitting bool
}

func newModel(conn ConnWriter, name, path string) model {
	ti := textinput.New()
	ti.Placeholder = "insert 0 hello"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 60

	return model{
		input: ti,
		conn:  conn,
		name:  name,
		path:  path,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.quit()
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m.run(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case serverMsg:
		m.handleMsg(commons.Message(msg))
		return m, nil

	case disconnectedMsg:
		m.status = "lost connection!"
		m.quitting = true
		return m, tea.Quit
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run executes one command line.
func (m model) run(line string) (tea.Model, tea.Cmd) {
	cmd, err := parseCommand(line)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}

	switch {
	case cmd.quit:
		return m.quit()
	case cmd.sync:
		m.send(commons.Message{Type: commons.DocReqMessage})
	default:
		m.performOperation(cmd)
	}
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.send(commons.Message{Type: commons.LeaveMessage, Username: m.name})
	m.quitting = true
	return m, tea.Quit
}

func (m model) View() string {
	if m.quitting {
		return "\n  See you later!\n\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("otpad · %s", m.path)))
	b.WriteString("\n\n")

	if m.doc == nil {
		b.WriteString("Connecting...\n")
	} else {
		text := m.doc.Text()
		if text == "" {
			text = " "
		}
		style := docStyle
		if m.width > 4 {
			style = style.Width(m.width - 4)
		}
		b.WriteString(style.Render(text))
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("version %d · %d pending · users: %s", m.doc.Version(), m.doc.Pending(), m.users)))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("insert <pos> <text> · append <text> · delete <pos> <len> · sync · quit (esc)"))
	b.WriteString("\n")
	return b.String()
}
