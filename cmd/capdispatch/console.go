package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mgomes/capdispatch/internal/config"
)

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

type transcriptLine struct {
	id      int
	input   string
	output  string
	isErr   bool
	pending bool
}

// callResultMsg carries the outcome of a call started from the prompt.
type callResultMsg struct {
	id     int
	output string
	isErr  bool
}

type consoleModel struct {
	input      textinput.Model
	session    *session
	ctx        context.Context
	timeout    time.Duration
	nextID     int
	transcript []transcriptLine
	sent       []string
	sentIdx    int
	width      int
	height     int
	showHelp   bool
	showDocs   bool
	quitting   bool
	ready      bool
}

type consoleKeys struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Quit  key.Binding
	Clear key.Binding
	Tab   key.Binding
	Help  key.Binding
	Docs  key.Binding
}

var keys = consoleKeys{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous call"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next call"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "call"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "ctrl+d"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "complete method"),
	),
	Help: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "toggle help"),
	),
	Docs: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "toggle methods"),
	),
}

func newConsoleModel(ctx context.Context, s *session, timeout time.Duration) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "getBlockMeta(1, 0, 0)"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = s.device.Type() + "> "

	return consoleModel{
		input:   ti,
		session: s,
		ctx:     ctx,
		timeout: timeout,
		sentIdx: -1,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case callResultMsg:
		for i := range m.transcript {
			if m.transcript[i].id == msg.id {
				m.transcript[i].output = msg.output
				m.transcript[i].isErr = msg.isErr
				m.transcript[i].pending = false
				break
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-10, 10)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Clear):
			m.transcript = nil
			return m, nil

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Docs):
			m.showDocs = !m.showDocs
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.sent) > 0 {
				if m.sentIdx == -1 {
					m.sentIdx = len(m.sent) - 1
				} else if m.sentIdx > 0 {
					m.sentIdx--
				}
				m.input.SetValue(m.sent[m.sentIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.sentIdx != -1 {
				if m.sentIdx < len(m.sent)-1 {
					m.sentIdx++
					m.input.SetValue(m.sent[m.sentIdx])
				} else {
					m.sentIdx = -1
					m.input.SetValue("")
				}
				m.input.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			return m.complete(), nil

		case key.Matches(msg, keys.Enter):
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.sentIdx = -1

			if strings.HasPrefix(line, ":") {
				return m.command(line)
			}

			m.nextID++
			m.transcript = append(m.transcript, transcriptLine{id: m.nextID, input: line, pending: true})
			m.sent = append(m.sent, line)
			return m, m.call(m.nextID, line)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) command(line string) (consoleModel, tea.Cmd) {
	name := strings.Fields(line)[0]
	switch name {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":methods", ":m":
		m.showDocs = !m.showDocs
	case ":clear", ":c":
		m.transcript = nil
	case ":fuel", ":f":
		m.transcript = append(m.transcript, transcriptLine{
			input:  line,
			output: fmt.Sprintf("fuel %.1f", m.session.tank.Fuel()),
		})
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	default:
		m.transcript = append(m.transcript, transcriptLine{
			input:  line,
			output: fmt.Sprintf("Unknown command: %s", name),
			isErr:  true,
		})
	}
	return m, nil
}

func (m consoleModel) complete() consoleModel {
	prefix := strings.TrimSpace(m.input.Value())
	if prefix == "" || strings.ContainsAny(prefix, " (") {
		return m
	}

	var matches []string
	for _, name := range m.session.device.MethodNames() {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	slices.Sort(matches)

	switch {
	case len(matches) == 1:
		m.input.SetValue(matches[0] + "(")
		m.input.CursorEnd()
	case len(matches) > 1:
		m.transcript = append(m.transcript, transcriptLine{
			output: "Completions: " + strings.Join(matches, ", "),
		})
	}
	return m
}

// call runs line off the update loop so the console stays live while a
// method waits on ticks or fuel.
func (m consoleModel) call(id int, line string) tea.Cmd {
	return func() tea.Msg {
		output, isErr := m.evaluate(line)
		return callResultMsg{id: id, output: output, isErr: isErr}
	}
}

func (m consoleModel) evaluate(line string) (string, bool) {
	name, args, err := parseCall(line)
	if err != nil {
		return err.Error(), true
	}
	values, err := m.session.callWithTimeout(m.ctx, name, args, m.timeout)
	if err != nil {
		return err.Error(), true
	}
	return formatValues(values), false
}

func (m consoleModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.quitting {
		return mutedStyle.Render("Detached.\n")
	}

	var b strings.Builder
	header := headerStyle.Render("capdispatch console")
	attached := mutedStyle.Render(fmt.Sprintf("%s on %s", m.session.device.Type(), m.session.computer.AttachmentName()))
	b.WriteString(header + " " + attached + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(min(m.width-2, 60), 0))) + "\n\n")

	reserved := 8
	if m.showHelp {
		reserved += 10
	}
	if m.showDocs {
		reserved += len(m.session.device.MethodNames()) + 3
	}
	available := max(m.height-reserved, 0)

	start := 0
	if len(m.transcript) > available {
		start = len(m.transcript) - available
	}
	for _, entry := range m.transcript[start:] {
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		switch {
		case entry.pending:
			b.WriteString("  " + mutedStyle.Render("… waiting") + "\n")
		case entry.isErr:
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		default:
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showDocs {
		b.WriteString(m.renderMethods())
		b.WriteString("\n")
	}
	if m.showHelp {
		b.WriteString(renderHelp())
		b.WriteString("\n")
	}

	b.WriteString(m.input.View() + "\n\n")
	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+o") + helpDescStyle.Render(" methods  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)
	return b.String()
}

func (m consoleModel) renderMethods() string {
	docs := m.session.device.Docs()
	if len(docs) == 0 {
		return borderStyle.Render(mutedStyle.Render("No methods attached"))
	}
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Methods")}
	nameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, doc := range docs {
		sig, summary := splitDoc(doc.Doc)
		if sig == "" {
			sig = doc.Name
		}
		lines = append(lines, fmt.Sprintf("  %s  %s", nameStyle.Render(sig), helpDescStyle.Render(summary)))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelp() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate call history"},
		{"Tab", "Complete a method name"},
		{"Enter", "Call a method"},
		{":help", "Toggle this help"},
		{":methods", "Toggle the method list"},
		{":fuel", "Show remaining fuel"},
		{":clear", "Clear the transcript"},
		{":quit", "Detach and exit"},
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help")}
	for _, h := range help {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-9s", h.key)),
			helpDescStyle.Render(h.desc)))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func newConsoleCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Attach an interactive console to the demo manipulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), a, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for deferred results")
	return cmd
}

func runConsole(ctx context.Context, a *app, timeout time.Duration) error {
	s, err := newSession(a.cfg, a.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.start(ctx)
	defer s.close()

	if a.used != "" {
		go func() {
			err := config.Watch(ctx, config.LoadOptions{Path: a.used}, a.logger, func(cfg *config.Config) {
				a.logger.SetLevel(reloadedLevel(cfg))
			})
			if err != nil {
				a.logger.Warn("config watch stopped", "err", err)
			}
		}()
	}

	p := tea.NewProgram(newConsoleModel(ctx, s, timeout), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// reloadedLevel picks the log level for a configuration read back from
// disk; invalid levels keep the logger at info.
func reloadedLevel(cfg *config.Config) log.Level {
	if cfg.Debug {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
