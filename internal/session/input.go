package session

import (
	tea "github.com/charmbracelet/bubbletea"
)

const (
	lineStep  = 1
	pageStep  = 5
	wheelStep = 3
)

// handleKey routes one key. While a tool call awaits confirmation only the
// confirm and cancel keys do anything; Ctrl+C still quits.
func (o *Orchestrator) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return o.quit()
	}
	if o.gate.state == GateAwaiting {
		switch key {
		case "y", "Y", "enter":
			return o.ConfirmTool()
		case "n", "N", "esc":
			return o.RejectTool()
		}
		return nil
	}

	switch key {
	case "ctrl+k":
		o.clearHistory()
		return nil
	case "esc":
		o.Cancel()
		return nil
	case "tab":
		o.setFocus(o.focus + 1)
		return nil
	case "shift+tab":
		o.setFocus(o.focus + paneCount - 1)
		return nil
	}

	if o.focus == PaneInput {
		if key == "enter" {
			text := o.input.Value()
			o.input.Reset()
			return o.Submit(text)
		}
		var cmd tea.Cmd
		o.input, cmd = o.input.Update(msg)
		return cmd
	}

	switch key {
	case "up", "k":
		o.scroll(o.focus, lineStep)
	case "down", "j":
		o.scroll(o.focus, -lineStep)
	case "pgup", "ctrl+b":
		o.scroll(o.focus, pageStep)
	case "pgdown", "ctrl+f":
		o.scroll(o.focus, -pageStep)
	case "home", "g":
		o.scrollTo(o.focus, o.maxScroll(o.focus))
	case "end", "G":
		o.scrollTo(o.focus, 0)
	}
	return nil
}

func (o *Orchestrator) handleMouse(msg tea.MouseMsg) {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		o.scroll(o.focus, wheelStep)
	case msg.Button == tea.MouseButtonWheelDown:
		o.scroll(o.focus, -wheelStep)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if o.layout == nil {
			return
		}
		if pane, ok := o.layout.PaneAt(o.width, o.height, msg.Y); ok {
			o.setFocus(pane)
		}
	}
}

func (o *Orchestrator) setFocus(p Pane) {
	o.focus = p % paneCount
	if o.focus == PaneInput {
		o.input.Focus()
	} else {
		o.input.Blur()
	}
}

// Focus returns the focused pane.
func (o *Orchestrator) Focus() Pane { return o.focus }

// Offset returns the scroll offset of a pane, counted in lines from the
// bottom.
func (o *Orchestrator) Offset(p Pane) int {
	switch p {
	case PaneChat:
		return o.chatOffset
	case PaneLogs:
		return o.logOffset
	default:
		return 0
	}
}

func (o *Orchestrator) scroll(p Pane, delta int) {
	o.scrollTo(p, o.Offset(p)+delta)
}

func (o *Orchestrator) scrollTo(p Pane, offset int) {
	offset = clampInt(offset, 0, o.maxScroll(p))
	switch p {
	case PaneChat:
		o.chatOffset = offset
	case PaneLogs:
		o.logOffset = offset
	}
}

// maxScroll asks the renderer how far a pane can scroll. Without a layout
// the number of entries is the bound.
func (o *Orchestrator) maxScroll(p Pane) int {
	if o.layout != nil && o.width > 0 && o.height > 0 {
		return maxInt(0, o.layout.MaxScroll(p, o.View()))
	}
	switch p {
	case PaneChat:
		return o.history.Len()
	case PaneLogs:
		return o.logView.Len()
	default:
		return 0
	}
}

func (o *Orchestrator) clampOffsets() {
	o.scrollTo(PaneChat, o.chatOffset)
	o.scrollTo(PaneLogs, o.logOffset)
}
