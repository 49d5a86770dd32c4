// Package ui draws a session.View. It holds no session state of its own
// apart from a markdown cache; every frame is a pure function of the view.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"pcli2rig/internal/conversation"
	"pcli2rig/internal/session"
)

const (
	toolResultMaxLines = 40
	argumentsLimit     = 240
	scrollHint         = "↑/↓ scroll · PgUp/PgDn fast"
)

var bannerArt = []string{
	"██████╗  ██████╗██╗     ██╗██████╗     ██████╗ ██╗ ██████╗",
	"██╔══██╗██╔════╝██║     ██║╚════██╗    ██╔══██╗██║██╔════╝",
	"██████╔╝██║     ██║     ██║ █████╔╝    ██████╔╝██║██║  ███╗",
	"██╔═══╝ ██║     ██║     ██║██╔═══╝     ██╔══██╗██║██║   ██║",
	"██║     ╚██████╗███████╗██║███████╗    ██║  ██║██║╚██████╔╝",
	"╚═╝      ╚═════╝╚══════╝╚═╝╚══════╝    ╚═╝  ╚═╝╚═╝ ╚═════╝",
}

// Renderer turns a session.View into a frame. It also answers the layout
// questions the session asks for mouse focus and scroll bounds.
type Renderer struct {
	theme    Theme
	md       *markdown
	noBanner bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme replaces the default theme.
func WithTheme(t Theme) Option {
	return func(r *Renderer) { r.theme = t }
}

// WithMarkdownStyle selects a glamour standard style such as "dark",
// "light" or "notty".
func WithMarkdownStyle(style string) Option {
	return func(r *Renderer) { r.md = newMarkdown(style) }
}

// WithoutBanner hides the logo above the conversation.
func WithoutBanner() Option {
	return func(r *Renderer) { r.noBanner = true }
}

// New returns a renderer with the default theme.
func New(opts ...Option) *Renderer {
	r := &Renderer{theme: NewTheme(), md: newMarkdown("dark")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws the whole screen.
func (r *Renderer) Render(v session.View) string {
	width, height := v.Width, v.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if v.Pending != nil {
		return r.theme.root.Render(r.renderConfirmation(v, width, height))
	}
	g := layoutFor(height)
	out := lipgloss.JoinVertical(lipgloss.Left,
		r.renderChat(v, width, g),
		r.renderInput(v, width),
		r.renderLogs(v, width, g),
		r.renderStatus(v, width),
	)
	return r.theme.root.Render(out)
}

func (r *Renderer) renderChat(v session.View, width int, g regions) string {
	style := r.theme.panel
	if v.Focus == session.PaneChat {
		style = r.theme.panelFocus
	}
	title := r.title(fmt.Sprintf("Chat History [%d]", len(v.Messages)), v.Focus == session.PaneChat, v.ChatOffset)
	body := window(r.chatLines(v), innerWidth(width), g.chatRows(), v.ChatOffset)
	return style.Width(width - 2).Render(title + "\n" + body)
}

func (r *Renderer) renderInput(v session.View, width int) string {
	style := r.theme.inputPanel
	if v.Focus == session.PaneInput {
		style = r.theme.inputFocus
	}
	return style.Width(width - 2).Render(lipgloss.NewStyle().MaxWidth(innerWidth(width)).Render(v.InputView))
}

func (r *Renderer) renderLogs(v session.View, width int, g regions) string {
	style := r.theme.logPanel
	if v.Focus == session.PaneLogs {
		style = r.theme.logFocus
	}
	inner := innerWidth(width)
	lines := make([]string, 0, len(v.Logs))
	for _, line := range v.Logs {
		sev, ok := r.theme.severities[line.Severity.String()]
		if !ok {
			sev = r.theme.helpText
		}
		stamp := r.theme.helpText.Render(line.Time.Format("15:04:05"))
		lines = append(lines, stamp+" "+sev.Render(truncate(compactSingleLine(line.Display()), maxInt(1, inner-9))))
	}
	if len(lines) == 0 {
		lines = append(lines, r.theme.helpText.Render("No log output yet."))
	}
	title := r.title("Logs", v.Focus == session.PaneLogs, v.LogOffset)
	body := window(lines, inner, g.logRows(), v.LogOffset)
	return style.Width(width - 2).Render(title + "\n" + body)
}

func (r *Renderer) renderStatus(v session.View, width int) string {
	status := v.Status
	style := r.statusStyle(v)
	if v.Thinking {
		status = fmt.Sprintf("%s %s %s", v.Spinner, v.Status, formatElapsed(v.ThinkingFor))
	}

	meta := []string{v.Model}
	if v.Provider != "" {
		meta = append(meta, v.Provider)
	}
	if v.MCPTools > 0 {
		meta = append(meta, fmt.Sprintf("🔌%d", v.MCPTools))
	}
	right := r.theme.helpText.Render(strings.Join(meta, " · "))
	if v.Yolo {
		right += " " + r.theme.unsafe.Render("UNSAFE")
	}

	room := maxInt(1, width-lipgloss.Width(right)-3)
	left := style.Render(" " + truncate(compactSingleLine(status), room))
	gap := maxInt(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (r *Renderer) statusStyle(v session.View) lipgloss.Style {
	switch {
	case strings.Contains(v.Status, "✗") || strings.Contains(v.Status, "Error") || strings.Contains(v.Status, "failed"):
		return r.theme.errorStatus
	case strings.Contains(v.Status, "⚠"):
		return r.theme.warning
	case strings.Contains(v.Status, "✓"):
		return r.theme.okStatus
	case v.Thinking || v.Executing != "":
		return r.theme.busyStatus
	default:
		return r.theme.status
	}
}

func (r *Renderer) title(label string, focused bool, offset int) string {
	out := r.theme.panelTitle.Render(label)
	if offset > 0 {
		out += r.theme.helpText.Render(fmt.Sprintf("  [+%d]", offset))
	}
	if focused {
		out += r.theme.helpText.Render("  " + scrollHint)
	}
	return out
}

// chatLines renders the conversation into display lines at the chat width.
func (r *Renderer) chatLines(v session.View) []string {
	width := innerWidth(v.Width)
	var lines []string
	if !r.noBanner && width >= len([]rune(bannerArt[0])) && layoutFor(v.Height).chatRows() >= 10 {
		for _, row := range bannerArt {
			lines = append(lines, r.theme.banner.Render(row))
		}
		lines = append(lines, "")
	}
	for i, msg := range v.Messages {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, r.header(msg))
		switch msg.Role {
		case conversation.RoleAssistant:
			lines = append(lines, r.md.Lines(msg.Content, width)...)
		case conversation.RoleToolResult:
			lines = append(lines, r.plain(clipLines(msg.Content, toolResultMaxLines), width)...)
		default:
			lines = append(lines, r.plain(msg.Content, width)...)
		}
	}
	return lines
}

func (r *Renderer) header(msg conversation.Message) string {
	style := r.theme.roles[msg.Role.String()]
	switch msg.Role {
	case conversation.RoleUser:
		return style.Render("👤 You:")
	case conversation.RoleAssistant:
		return style.Render("🤖 Assistant:")
	case conversation.RoleToolResult:
		return style.Render("🔧 Tool: " + msg.ToolName)
	default:
		return style.Render("⚙ System:")
	}
}

func (r *Renderer) plain(content string, width int) []string {
	lines := wrapLines(content, width)
	for i, line := range lines {
		lines[i] = r.theme.body.Render(line)
	}
	return lines
}

func (r *Renderer) renderConfirmation(v session.View, width, height int) string {
	c := v.Pending
	modalWidth := clampInt(width*3/4, 40, 100)
	if modalWidth > width-2 {
		modalWidth = maxInt(20, width-2)
	}
	inner := maxInt(10, modalWidth-6)

	args := c.Descriptor.Summary
	if strings.TrimSpace(args) == "" {
		args = c.Call.Arguments
	}
	lines := []string{
		r.theme.modalTitle.Render(" Confirmation Required "),
		"",
		r.theme.modalTitle.Render("🔧 Tool Execution Requested"),
		"",
		"Tool: " + c.Call.ToolName,
	}
	lines = append(lines, wrapLines("Arguments: "+truncate(compactSingleLine(args), argumentsLimit), inner)...)

	if preview := strings.TrimRight(c.Descriptor.Preview, "\n"); preview != "" {
		lines = append(lines, "")
		room := maxInt(3, height-16-len(c.Descriptor.Warnings))
		for _, line := range strings.Split(clipLines(preview, room), "\n") {
			lines = append(lines, r.theme.helpText.Render(truncate(line, inner)))
		}
	}
	if len(c.Descriptor.Warnings) > 0 {
		lines = append(lines, "")
		for _, w := range c.Descriptor.Warnings {
			lines = append(lines, r.theme.warning.Render("⚠ "+truncate(w, inner-2)))
		}
	}
	lines = append(lines, "", r.theme.prompt.Render("Execute this tool? (Y/n)"))

	panel := r.theme.modal.Width(modalWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel,
		lipgloss.WithWhitespaceBackground(bg))
}

// window shows the rows of lines that end offset lines above the bottom.
func window(lines []string, width, rows, offset int) string {
	vp := viewport.New(width, rows)
	vp.SetContent(strings.Join(lines, "\n"))
	vp.SetYOffset(maxInt(0, len(lines)-rows-offset))
	return vp.View()
}

func formatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

func clipLines(text string, limit int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= limit {
		return text
	}
	return strings.Join(lines[:limit], "\n") + fmt.Sprintf("\n… (%d more lines)", len(lines)-limit)
}
