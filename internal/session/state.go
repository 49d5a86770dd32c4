package session

import (
	"time"

	"pcli2rig/internal/conversation"
	"pcli2rig/internal/logring"
	"pcli2rig/internal/tools"
)

// Pane is one of the three focusable regions.
type Pane int

const (
	PaneChat Pane = iota
	PaneInput
	PaneLogs
	paneCount
)

func (p Pane) String() string {
	switch p {
	case PaneChat:
		return "chat"
	case PaneInput:
		return "input"
	case PaneLogs:
		return "logs"
	default:
		return "unknown"
	}
}

// PendingToolCall is a proposed invocation awaiting approval.
type PendingToolCall struct {
	ToolName  string
	Arguments string
	CallID    string
}

// Confirmation is what the renderer shows while a call awaits approval.
type Confirmation struct {
	Call       PendingToolCall
	Descriptor tools.Descriptor
}

// View is a read-only snapshot of session state for the renderer.
type View struct {
	Width  int
	Height int

	Messages []conversation.Message
	Logs     []logring.Line
	Status   string

	Input       string
	Cursor      int
	InputView   string
	Focus       Pane
	ChatOffset  int
	LogOffset   int
	Thinking    bool
	ThinkingFor time.Duration
	Spinner     string
	Queued      int
	Executing   string

	Pending *Confirmation

	Model    string
	Provider string
	Yolo     bool
	MCPTools int
}
