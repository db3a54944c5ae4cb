// internal/dialog/terminal.go
package dialog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// TerminalFrontend presents a window as a Bubble Tea program.
type TerminalFrontend struct {
	logger *zap.Logger
	input  io.Reader
	output io.Writer
}

// NewTerminalFrontend returns a frontend drawing on stderr and reading stdin.
func NewTerminalFrontend(logger *zap.Logger) *TerminalFrontend {
	return &TerminalFrontend{
		logger: logger.Named("terminal"),
		input:  os.Stdin,
		output: os.Stderr,
	}
}

// Present runs the program until the user picks an action or ctx is done.
// A send already under way is waited for before Present returns.
func (f *TerminalFrontend) Present(ctx context.Context, c *Controller) error {
	m := newModel(ctx, c)
	prog := tea.NewProgram(m, tea.WithInput(f.input), tea.WithOutput(f.output))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			prog.Quit()
		case <-stop:
		}
	}()

	_, runErr := prog.Run()
	if m.sending {
		// The send outlives the program; its result decides the window.
		<-c.Done()
		m.sending = false
		m.err = c.Outcome().Err
	}
	if runErr != nil {
		return runErr
	}
	if m.err != nil {
		f.logger.Debug("Window action failed.", zap.Error(m.err))
	}
	return nil
}

const (
	focusComments = iota
	focusEmail
	focusSend
	focusIgnore
	focusDiscard
	focusCount
)

var buttonLabels = map[int]string{
	focusSend:    "Send Report",
	focusIgnore:  "Ignore",
	focusDiscard: "Discard",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	buttonStyle  = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	focusedStyle = buttonStyle.Copy().BorderForeground(lipgloss.Color("42")).Bold(true)
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type sentMsg struct{ err error }

// model is the Bubble Tea state of one window.
type model struct {
	ctx        context.Context
	controller *Controller

	comments textarea.Model
	email    textinput.Model
	spinner  spinner.Model

	focus   int
	sending bool
	done    bool
	err     error
}

func newModel(ctx context.Context, c *Controller) *model {
	cp := c.Copy()

	ta := textarea.New()
	ta.Placeholder = cp.Placeholder
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(5)
	ta.Focus()

	ti := textinput.New()
	ti.Placeholder = "email (optional)"
	ti.SetValue(c.Email())
	ti.Width = 58

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &model{
		ctx:        ctx,
		controller: c,
		comments:   ta,
		email:      ti,
		spinner:    sp,
	}
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sentMsg:
		m.sending = false
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.sending || m.done {
			// The submission owns the window until it returns.
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC:
			m.done = true
			return m, tea.Quit
		case tea.KeyTab:
			return m, m.setFocus((m.focus + 1) % focusCount)
		case tea.KeyShiftTab:
			return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
		case tea.KeyCtrlS:
			return m, m.send()
		case tea.KeyEnter:
			switch m.focus {
			case focusSend:
				return m, m.send()
			case focusIgnore:
				return m, m.finish(m.controller.IgnoreReport())
			case focusDiscard:
				return m, m.finish(m.controller.DiscardReport())
			case focusEmail:
				return m, m.setFocus(focusSend)
			}
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusComments:
		m.comments, cmd = m.comments.Update(msg)
	case focusEmail:
		m.email, cmd = m.email.Update(msg)
	}
	return m, cmd
}

func (m *model) setFocus(focus int) tea.Cmd {
	m.focus = focus
	m.comments.Blur()
	m.email.Blur()
	switch focus {
	case focusComments:
		return m.comments.Focus()
	case focusEmail:
		return m.email.Focus()
	}
	return nil
}

// send starts the submission as a command so the spinner keeps drawing.
func (m *model) send() tea.Cmd {
	if err := m.controller.SetEmail(strings.TrimSpace(m.email.Value())); err != nil {
		return m.finish(err)
	}
	m.sending = true
	ctx, c, comments := m.ctx, m.controller, m.comments.Value()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return sentMsg{err: c.SendReport(ctx, comments)}
	})
}

func (m *model) finish(err error) tea.Cmd {
	m.done = true
	m.err = err
	return tea.Quit
}

// View implements tea.Model.
func (m *model) View() string {
	cp := m.controller.Copy()
	var b strings.Builder

	b.WriteString(titleStyle.Render(valueOr(cp.Title, "Crash detected")))
	b.WriteString("\n\n")
	if cp.Message != "" {
		b.WriteString(cp.Message)
		b.WriteString("\n")
	}
	reports := m.controller.Reports()
	for _, r := range reports {
		fmt.Fprintf(&b, "  • %s (%s)\n", r.Path, r.Date.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n")
	if cp.Prompt != "" {
		b.WriteString(cp.Prompt)
		b.WriteString("\n")
	}
	b.WriteString(frameStyle.Render(m.comments.View()))
	b.WriteString("\n")
	b.WriteString(m.email.View())
	b.WriteString("\n\n")

	if m.sending {
		b.WriteString(m.spinner.View())
		b.WriteString(" Sending report…\n")
	} else {
		buttons := make([]string, 0, 3)
		for _, f := range []int{focusSend, focusIgnore, focusDiscard} {
			style := buttonStyle
			if m.focus == f {
				style = focusedStyle
			}
			buttons = append(buttons, style.Render(buttonLabels[f]))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if cp.Note != "" {
		b.WriteString(noteStyle.Render(cp.Note))
		b.WriteString("\n")
	}
	b.WriteString(noteStyle.Render("tab switch • enter choose • ctrl+s send • ctrl+c close"))
	return b.String()
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
