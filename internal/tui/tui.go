// Package tui runs a session as a bubbletea program.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"pcli2rig/internal/session"
	"pcli2rig/internal/ui"
)

// Welcome is shown as the first system notice of a session.
const Welcome = `PCLI2-RIG
🤖 Local AI Agent · Powered by Ollama

Type /help for commands, /tools for tools, /quit to exit.`

// Model adapts a session to tea.Model. All state lives in the session; the
// renderer only draws it.
type Model struct {
	session  *session.Orchestrator
	renderer *ui.Renderer
}

// New pairs a session with the renderer that was given to it as its layout.
func New(s *session.Orchestrator, r *ui.Renderer) Model {
	return Model{session: s, renderer: r}
}

func (m Model) Init() tea.Cmd {
	return m.session.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, m.session.Update(msg)
}

func (m Model) View() string {
	if m.session.Quitting() {
		return ""
	}
	return m.renderer.Render(m.session.View())
}

// Session returns the wrapped session.
func (m Model) Session() *session.Orchestrator { return m.session }

// Run drives m on the terminal until the session quits or ctx ends.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}, opts...)
	defer m.session.Shutdown()
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
