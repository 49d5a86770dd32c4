package ui

import "pcli2rig/internal/session"

const (
	chatMinHeight = 8
	inputHeight   = 3
	logsHeight    = 6
	statusHeight  = 1

	// panel chrome: two border rows plus the title row
	panelChrome = 3

	defaultWidth  = 80
	defaultHeight = 24
)

// regions are the outer heights of the stacked panes, top to bottom.
type regions struct {
	chat   int
	input  int
	logs   int
	status int
}

func layoutFor(height int) regions {
	if height <= 0 {
		height = defaultHeight
	}
	return regions{
		chat:   maxInt(chatMinHeight, height-inputHeight-logsHeight-statusHeight),
		input:  inputHeight,
		logs:   logsHeight,
		status: statusHeight,
	}
}

func (g regions) chatRows() int { return maxInt(1, g.chat-panelChrome) }

func (g regions) logRows() int { return maxInt(1, g.logs-panelChrome) }

// innerWidth is the text width inside a bordered, padded panel.
func innerWidth(width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	return maxInt(10, width-4)
}

// PaneAt reports which pane covers screen row. The status bar is not a pane.
func (r *Renderer) PaneAt(width, height, row int) (session.Pane, bool) {
	if row < 0 || height <= 0 {
		return 0, false
	}
	g := layoutFor(height)
	switch {
	case row < g.chat:
		return session.PaneChat, true
	case row < g.chat+g.input:
		return session.PaneInput, true
	case row < g.chat+g.input+g.logs:
		return session.PaneLogs, true
	default:
		return 0, false
	}
}

// MaxScroll returns how many lines p can scroll up from the bottom.
func (r *Renderer) MaxScroll(p session.Pane, v session.View) int {
	g := layoutFor(v.Height)
	switch p {
	case session.PaneChat:
		return maxInt(0, len(r.chatLines(v))-g.chatRows())
	case session.PaneLogs:
		return maxInt(0, len(v.Logs)-g.logRows())
	default:
		return 0
	}
}
