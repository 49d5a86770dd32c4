// Package session owns the state of one chat session and the control loop
// that multiplexes terminal input, the single in-flight model request, the
// log relay and the tool confirmation gate. It is driven by bubbletea: every
// input, response and tick arrives as a tea.Msg through Update, so state is
// only ever touched from the program goroutine.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"pcli2rig/internal/config"
	"pcli2rig/internal/conversation"
	"pcli2rig/internal/logring"
	"pcli2rig/internal/mcp"
	"pcli2rig/internal/provider"
	"pcli2rig/internal/task"
	"pcli2rig/internal/tools"
)

const responseBuffer = 32

// Executor runs tools and describes pending calls.
type Executor interface {
	Execute(ctx context.Context, name, argsJSON string) (string, error)
	Describe(name, argsJSON string) tools.Descriptor
	Specs() []provider.ToolSpec
	List() []tools.Info
	RemoteNames() []string
}

// ServerManager is the MCP client surface behind /mcp.
type ServerManager interface {
	AddServer(ctx context.Context, server config.MCPServer) error
	Refresh(ctx context.Context) error
	Servers() []mcp.ServerStatus
}

// Layout answers the geometry questions only the renderer can.
type Layout interface {
	PaneAt(width, height, row int) (Pane, bool)
	MaxScroll(p Pane, v View) int
}

// Deps wires the orchestrator to its collaborators. Servers, Relay and
// Layout are optional.
type Deps struct {
	Config   config.Config
	Provider provider.Provider
	Tools    Executor
	Servers  ServerManager
	Relay    *logring.Relay
	Layout   Layout
	Log      zerolog.Logger
	// Save persists configuration; config.Save when nil.
	Save    func(config.Config) (string, error)
	Now     func() time.Time
	Context context.Context
}

// Orchestrator is the session state machine.
type Orchestrator struct {
	cfg      config.Config
	provider provider.Provider
	tools    Executor
	servers  ServerManager
	relay    *logring.Relay
	layout   Layout
	log      zerolog.Logger
	save     func(config.Config) (string, error)
	now      func() time.Time
	ctx      context.Context

	history *conversation.History
	status  string
	model   string
	yolo    bool

	input      textinput.Model
	spinner    spinner.Model
	focus      Pane
	chatOffset int
	logOffset  int
	width      int
	height     int

	thinking      bool
	thinkingSince time.Time
	queue         []string
	token         *task.Token
	nextID        uint64
	responses     chan task.Response

	gate gate

	logView *logring.Ring[logring.Line]
	lastSeq uint64

	quitting bool
}

type logTickMsg time.Time

type toolDoneMsg struct {
	call    PendingToolCall
	output  string
	err     error
	elapsed time.Duration
}

type actionDoneMsg struct {
	status string
	notice string
	err    error
}

type serverAddedMsg struct {
	server config.MCPServer
	save   bool
	err    error
}

// New builds an orchestrator in the Ready state with focus on the input.
func New(d Deps) *Orchestrator {
	cfg := d.Config
	cfg.Normalize()
	if d.Save == nil {
		d.Save = config.Save
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Context == nil {
		d.Context = context.Background()
	}

	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "Type a message or /help"
	in.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Spinner{
		Frames: spinner.Dot.Frames,
		FPS:    cfg.SpinnerInterval,
	}))

	return &Orchestrator{
		cfg:       cfg,
		provider:  d.Provider,
		tools:     d.Tools,
		servers:   d.Servers,
		relay:     d.Relay,
		layout:    d.Layout,
		log:       d.Log.With().Str("component", "session").Logger(),
		save:      d.Save,
		now:       d.Now,
		ctx:       d.Context,
		history:   conversation.NewHistory(),
		status:    "Ready",
		model:     cfg.Model,
		yolo:      cfg.Yolo,
		input:     in,
		spinner:   sp,
		focus:     PaneInput,
		responses: make(chan task.Response, responseBuffer),
		logView:   logring.NewRing[logring.Line](cfg.LogCapacity),
	}
}

// Init starts the log sync tick and the cursor blink.
func (o *Orchestrator) Init() tea.Cmd {
	o.SyncLogs()
	return tea.Batch(textinput.Blink, o.logTick())
}

// Update handles exactly one event and returns follow-up work.
func (o *Orchestrator) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height
		o.input.Width = maxInt(10, msg.Width-8)
		o.clampOffsets()
		return nil
	case tea.KeyMsg:
		return o.handleKey(msg)
	case tea.MouseMsg:
		if o.gate.state == GateAwaiting {
			return nil
		}
		o.handleMouse(msg)
		return nil
	case task.Response:
		return o.OnResponse(msg)
	case toolDoneMsg:
		return o.onToolDone(msg)
	case actionDoneMsg:
		o.onActionDone(msg)
		return nil
	case serverAddedMsg:
		return o.onServerAdded(msg)
	case logTickMsg:
		o.SyncLogs()
		return o.logTick()
	case spinner.TickMsg:
		if !o.thinking {
			return nil
		}
		var cmd tea.Cmd
		o.spinner, cmd = o.spinner.Update(msg)
		return cmd
	default:
		if o.focus != PaneInput {
			return nil
		}
		var cmd tea.Cmd
		o.input, cmd = o.input.Update(msg)
		return cmd
	}
}

// Submit interprets text as a local command or sends it to the model. While
// a request is in flight plain text is queued; while a tool call is
// outstanding it is held for the follow-up prompt.
func (o *Orchestrator) Submit(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return o.runCommand(text)
	}
	if o.gate.state != GateIdle {
		o.gate.hold(text)
		o.status = fmt.Sprintf("%s (%d queued)", o.gateStatus(), len(o.gate.deferred))
		return nil
	}
	if o.thinking {
		o.queue = append(o.queue, text)
		o.status = fmt.Sprintf("Thinking... (%d queued)", len(o.queue))
		o.log.Debug().Int("queued", len(o.queue)).Msg("message queued")
		return nil
	}
	return o.spawn(text)
}

func (o *Orchestrator) spawn(text string) tea.Cmd {
	o.history.Append(conversation.RoleUser, text)
	o.thinking = true
	o.thinkingSince = o.now()
	o.nextID++
	tok := task.NewToken(o.ctx, o.nextID)
	o.token = tok
	o.status = "Thinking..."
	o.chatOffset = 0

	req := provider.Request{
		Model:    o.model,
		Preamble: provider.Preamble(o.tools.RemoteNames()),
		Snapshot: o.history.Snapshot(),
		Tools:    o.tools.Specs(),
	}
	o.log.Info().
		Uint64("request", tok.ID()).
		Str("model", req.Model).
		Int("messages", req.Snapshot.Len()).
		Msg("sending message to model")
	go task.Run(tok, o.provider, req, o.cfg.RequestTimeout, o.responses)
	return tea.Batch(awaitResponse(o.responses), o.spinner.Tick)
}

func awaitResponse(ch <-chan task.Response) tea.Cmd {
	return func() tea.Msg {
		resp, ok := <-ch
		if !ok {
			return nil
		}
		return resp
	}
}

// OnResponse applies the result of the current request. Responses of
// cancelled requests are ignored.
func (o *Orchestrator) OnResponse(resp task.Response) tea.Cmd {
	if o.token == nil || resp.ID != o.token.ID() {
		o.log.Debug().Uint64("request", resp.ID).Msg("discarding stale response")
		return nil
	}
	o.token = nil
	o.thinking = false
	o.chatOffset = 0

	var proposal tea.Cmd
	proposed := false
	switch task.Classify(resp.Err) {
	case task.KindNone:
		proposal, proposed = o.applyCompletion(resp)
	case task.KindCancelled:
		o.status = "Request cancelled"
	case task.KindTimeout:
		o.history.Append(conversation.RoleAssistant, "⚠ **Error:** "+cleanError(resp.Err))
		o.status = "✗ " + capitalize(compactSingleLine(cleanError(resp.Err), statusLimit))
		o.log.Error().Err(resp.Err).Msg("request timed out")
	default:
		o.history.Append(conversation.RoleAssistant, "⚠ **Error:** "+cleanError(resp.Err))
		o.status = "✗ Error: " + compactSingleLine(cleanError(resp.Err), statusLimit)
		o.log.Error().Err(resp.Err).Msg("request failed")
	}

	if proposed {
		return proposal
	}
	if len(o.queue) == 0 {
		return nil
	}
	combined := strings.Join(o.queue, "\n\n")
	o.queue = nil
	return o.spawn(combined)
}

func (o *Orchestrator) applyCompletion(resp task.Response) (tea.Cmd, bool) {
	c := resp.Completion
	hasText := strings.TrimSpace(c.Text) != ""
	if hasText {
		o.history.Append(conversation.RoleAssistant, c.Text)
		o.status = "✓ Ready"
		o.log.Info().
			Int("chars", len(c.Text)).
			Dur("elapsed", resp.Elapsed).
			Msg("response received")
	}
	if len(c.ToolCalls) > 0 {
		return o.propose(c.ToolCalls), true
	}
	if !hasText {
		o.history.Append(conversation.RoleAssistant,
			"⚠ The model returned an empty response. This may indicate a problem with the model or the request.")
		o.status = "⚠ Empty response from model"
		o.log.Warn().Msg("received empty response from model")
	}
	return nil, false
}

// propose hands the first proposed call to the gate. Messages queued during
// the request are held until the call resolves.
func (o *Orchestrator) propose(calls []provider.ToolCall) tea.Cmd {
	call := calls[0]
	if len(calls) > 1 {
		o.log.Warn().
			Int("proposed", len(calls)).
			Str("tool", call.Name).
			Msg("model proposed several tool calls; handling the first")
	}
	pending := PendingToolCall{ToolName: call.Name, Arguments: call.Arguments, CallID: call.ID}
	o.gate.propose(pending, o.tools.Describe(call.Name, call.Arguments))
	for _, text := range o.queue {
		o.gate.hold(text)
	}
	o.queue = nil
	o.log.Info().Str("tool", call.Name).Str("call_id", call.ID).Msg("tool call proposed")

	if o.yolo {
		o.log.Warn().Str("tool", call.Name).Msg("unsafe mode: executing without confirmation")
		return o.ConfirmTool()
	}
	o.status = fmt.Sprintf("Confirm %s? (Y/n)", call.Name)
	return nil
}

// ConfirmTool executes the pending call.
func (o *Orchestrator) ConfirmTool() tea.Cmd {
	call, ok := o.gate.confirm()
	if !ok {
		return nil
	}
	o.status = fmt.Sprintf("Executing %s...", call.ToolName)
	o.log.Info().Str("tool", call.ToolName).Msg("executing tool")

	exec := o.tools
	parent := o.ctx
	timeout := o.cfg.ToolTimeout
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		out, err := exec.Execute(ctx, call.ToolName, call.Arguments)
		return toolDoneMsg{call: call, output: out, err: err, elapsed: time.Since(start)}
	}
}

// RejectTool drops the pending call without running it.
func (o *Orchestrator) RejectTool() tea.Cmd {
	call, deferred, ok := o.gate.cancel()
	if !ok {
		return nil
	}
	o.status = "Tool execution cancelled"
	o.log.Info().Str("tool", call.ToolName).Msg("tool execution cancelled")
	if len(deferred) == 0 {
		return nil
	}
	return o.spawn(strings.Join(deferred, "\n\n"))
}

func (o *Orchestrator) onToolDone(msg toolDoneMsg) tea.Cmd {
	call, deferred, ok := o.gate.finish()
	if !ok {
		return nil
	}
	var followUp string
	if msg.err != nil {
		result := "Error: " + cleanError(msg.err)
		o.history.AppendToolResult(call.ToolName, call.CallID, result)
		o.status = "Tool execution failed: " + compactSingleLine(cleanError(msg.err), statusLimit)
		o.log.Warn().Err(msg.err).Str("tool", call.ToolName).Msg("tool execution failed")
		followUp = "The tool failed:\n" + result
	} else {
		o.history.AppendToolResult(call.ToolName, call.CallID, msg.output)
		o.status = "Tool executed successfully"
		o.log.Info().
			Str("tool", call.ToolName).
			Int("chars", len(msg.output)).
			Dur("elapsed", msg.elapsed).
			Msg("tool executed")
		followUp = "The tool returned:\n" + msg.output
	}
	o.chatOffset = 0
	return o.spawn(strings.Join(append([]string{followUp}, deferred...), "\n\n"))
}

// Cancel stops the in-flight request. It is a no-op when nothing is in
// flight. Queued messages are discarded with the request.
func (o *Orchestrator) Cancel() {
	if o.token == nil {
		return
	}
	id := o.token.ID()
	o.token.Cancel()
	o.token = nil
	o.thinking = false
	dropped := len(o.queue)
	o.queue = nil
	o.status = "Request cancelled"
	if dropped > 0 {
		o.status += fmt.Sprintf(" (%d queued discarded)", dropped)
	}
	o.log.Info().Uint64("request", id).Int("discarded", dropped).Msg("request cancelled")
}

// Shutdown cancels any in-flight request.
func (o *Orchestrator) Shutdown() {
	if o.token != nil {
		o.token.Cancel()
		o.token = nil
	}
}

// Notice appends a local message that is shown but never sent to the model.
func (o *Orchestrator) Notice(text string) {
	o.history.Append(conversation.RoleSystem, text)
	o.chatOffset = 0
}

// SyncLogs pulls lines newer than the last one seen from the relay and
// returns how many arrived.
func (o *Orchestrator) SyncLogs() int {
	if o.relay == nil {
		return 0
	}
	lines := o.relay.Since(o.lastSeq)
	for _, line := range lines {
		o.logView.Push(line)
		o.lastSeq = line.Seq
	}
	return len(lines)
}

func (o *Orchestrator) logTick() tea.Cmd {
	return tea.Tick(o.cfg.LogSyncInterval, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (o *Orchestrator) onActionDone(msg actionDoneMsg) {
	if msg.err != nil {
		o.status = "✗ Error: " + compactSingleLine(cleanError(msg.err), statusLimit)
		o.log.Error().Err(msg.err).Msg("action failed")
		return
	}
	if msg.status != "" {
		o.status = msg.status
		o.log.Info().Msg(msg.status)
	}
	if msg.notice != "" {
		o.Notice(msg.notice)
	}
}

func (o *Orchestrator) clearHistory() {
	o.history.Clear()
	o.chatOffset = 0
	o.status = "Chat history cleared"
	o.log.Info().Msg("chat history cleared")
}

func (o *Orchestrator) quit() tea.Cmd {
	o.quitting = true
	o.Shutdown()
	return tea.Quit
}

func (o *Orchestrator) gateStatus() string {
	switch o.gate.state {
	case GateAwaiting:
		return fmt.Sprintf("Confirm %s? (Y/n)", o.gate.call.ToolName)
	case GateExecuting:
		return fmt.Sprintf("Executing %s...", o.gate.call.ToolName)
	default:
		return o.status
	}
}

// Quitting reports whether the session asked to exit.
func (o *Orchestrator) Quitting() bool { return o.quitting }

// Thinking reports whether a request is in flight.
func (o *Orchestrator) Thinking() bool { return o.thinking }

// Status returns the current status line.
func (o *Orchestrator) Status() string { return o.status }

// Queue returns a copy of the queued texts.
func (o *Orchestrator) Queue() []string { return append([]string(nil), o.queue...) }

// Pending returns the call awaiting confirmation, if any.
func (o *Orchestrator) Pending() *PendingToolCall {
	if o.gate.state != GateAwaiting {
		return nil
	}
	call := o.gate.call
	return &call
}

// Gate returns the confirmation gate state.
func (o *Orchestrator) Gate() GateState { return o.gate.state }

// History returns an immutable copy of the conversation.
func (o *Orchestrator) History() conversation.Snapshot { return o.history.Snapshot() }

// Model returns the model used for the next request.
func (o *Orchestrator) Model() string { return o.model }

// View returns a snapshot for the renderer.
func (o *Orchestrator) View() View {
	v := View{
		Width:      o.width,
		Height:     o.height,
		Messages:   o.history.Snapshot().Messages(),
		Logs:       o.logView.Items(),
		Status:     o.status,
		Input:      o.input.Value(),
		Cursor:     o.input.Position(),
		InputView:  o.input.View(),
		Focus:      o.focus,
		ChatOffset: o.chatOffset,
		LogOffset:  o.logOffset,
		Thinking:   o.thinking,
		Queued:     len(o.queue),
		Pending:    o.gate.pending(),
		Model:      o.model,
		Yolo:       o.yolo,
		MCPTools:   len(o.tools.RemoteNames()),
	}
	if o.provider != nil {
		v.Provider = o.provider.Name()
	}
	if o.thinking {
		v.ThinkingFor = o.now().Sub(o.thinkingSince)
		v.Spinner = o.spinner.View()
	}
	if o.gate.state == GateExecuting {
		v.Executing = o.gate.call.ToolName
	}
	return v
}
