package session

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcli2rig/internal/conversation"
	"pcli2rig/internal/provider"
	"pcli2rig/internal/tools"
)

func readCall() provider.Completion {
	return provider.Completion{ToolCalls: []provider.ToolCall{{
		ID:        "call_1",
		Name:      "read_file",
		Arguments: `{"path":"README.md"}`,
	}}}
}

func proposeRead(t *testing.T, h *harness) {
	t.Helper()
	h.o.Submit("what is in the readme?")
	require.Nil(t, h.respond(t, readCall(), nil))
	require.Equal(t, GateAwaiting, h.o.Gate())
}

func TestToolProposalAwaitsConfirmation(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	proposeRead(t, h)

	pending := h.o.Pending()
	require.NotNil(t, pending)
	assert.Equal(t, "read_file", pending.ToolName)
	assert.Equal(t, `{"path":"README.md"}`, pending.Arguments)
	assert.Equal(t, "call_1", pending.CallID)
	assert.Equal(t, "Confirm read_file? (Y/n)", h.o.Status())
	assert.False(t, h.o.Thinking())
	assert.Equal(t, 0, h.exec.callCount())

	v := h.o.View()
	require.NotNil(t, v.Pending)
	assert.Equal(t, `{"path":"README.md"}`, v.Pending.Descriptor.Summary)
}

func TestConfirmRunsToolAndSendsResult(t *testing.T) {
	p := newBlockingProvider()
	h := newHarness(t, p)
	h.exec.output = "# Project"
	proposeRead(t, h)
	<-p.started

	cmd := h.o.Update(runes("y"))
	assert.Equal(t, GateExecuting, h.o.Gate())
	assert.Equal(t, "Executing read_file...", h.o.Status())
	assert.Nil(t, h.o.Pending())

	msg := runCmd(t, cmd)
	h.o.Update(msg)

	assert.Equal(t, 1, h.exec.callCount())
	assert.Equal(t, GateIdle, h.o.Gate())
	assert.True(t, h.o.Thinking(), "the result goes back to the model")

	snap := h.o.History()
	require.Equal(t, 3, snap.Len())
	result := snap.At(1)
	assert.Equal(t, conversation.RoleToolResult, result.Role)
	assert.Equal(t, "read_file", result.ToolName)
	assert.Equal(t, "call_1", result.CallID)
	assert.Equal(t, "# Project", result.Content)
	assert.Equal(t, "The tool returned:\n# Project", snap.At(2).Content)

	req := <-p.started
	assert.Equal(t, 3, req.Snapshot.Len())
}

func TestEnterAndUpperYConfirm(t *testing.T) {
	for _, key := range []tea.KeyMsg{keyType(tea.KeyEnter), runes("Y")} {
		h := newHarness(t, newBlockingProvider())
		proposeRead(t, h)
		require.NotNil(t, h.o.Update(key), key.String())
		assert.Equal(t, GateExecuting, h.o.Gate(), key.String())
	}
}

func TestRejectKeysCancelTool(t *testing.T) {
	for _, key := range []tea.KeyMsg{runes("n"), runes("N"), keyType(tea.KeyEsc)} {
		h := newHarness(t, newBlockingProvider())
		proposeRead(t, h)

		assert.Nil(t, h.o.Update(key), key.String())
		assert.Equal(t, GateIdle, h.o.Gate(), key.String())
		assert.Equal(t, "Tool execution cancelled", h.o.Status())
		assert.False(t, h.o.Thinking())
		assert.Equal(t, 0, h.exec.callCount())
		assert.Equal(t, 1, h.o.History().Len(), "rejection adds no message")
	}
}

func TestToolErrorIsReported(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.exec.err = errors.New("file not found")
	proposeRead(t, h)

	h.o.Update(runCmd(t, h.o.ConfirmTool()))

	snap := h.o.History()
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, conversation.RoleToolResult, snap.At(1).Role)
	assert.Equal(t, "Error: file not found", snap.At(1).Content)
	assert.Equal(t, "The tool failed:\nError: file not found", snap.At(2).Content)
	assert.Equal(t, "Tool execution failed: file not found", h.o.Status())
	assert.Equal(t, GateIdle, h.o.Gate())
}

func TestKeysAreSwallowedWhileAwaiting(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.o.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	proposeRead(t, h)
	before := h.o.View()

	keys := []tea.KeyMsg{
		runes("a"), runes("q"), runes("/"), runes("x"), runes("z"),
		keyType(tea.KeyTab), keyType(tea.KeyShiftTab), keyType(tea.KeyUp),
		keyType(tea.KeyDown), keyType(tea.KeyPgUp), keyType(tea.KeyPgDown),
		keyType(tea.KeyCtrlK), keyType(tea.KeyBackspace), keyType(tea.KeyHome),
		keyType(tea.KeyEnd), keyType(tea.KeySpace), keyType(tea.KeyLeft),
	}
	for i := 0; i < 50; i++ {
		assert.Nil(t, h.o.Update(keys[i%len(keys)]))
	}
	h.o.Update(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	h.o.Update(tea.MouseMsg{Y: 15, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})

	assert.Equal(t, before, h.o.View())
	assert.Equal(t, GateAwaiting, h.o.Gate())
	assert.Equal(t, 0, h.exec.callCount())
}

func TestCtrlCQuitsWhileAwaiting(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	proposeRead(t, h)
	cmd := h.o.Update(keyType(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.True(t, h.o.Quitting())
	assert.Equal(t, 0, h.exec.callCount())
}

func TestQueuedMessagesRideAlongWithToolResult(t *testing.T) {
	p := newBlockingProvider()
	h := newHarness(t, p)

	h.o.Submit("read the readme")
	h.o.Submit("and summarize it")
	require.Nil(t, h.respond(t, readCall(), nil))
	assert.Empty(t, h.o.Queue())
	assert.False(t, h.o.Thinking())

	h.o.Submit("in one line please")
	assert.Equal(t, "Confirm read_file? (Y/n) (2 queued)", h.o.Status())

	h.o.Update(runCmd(t, h.o.ConfirmTool()))

	_, content := h.lastMessage(t)
	assert.Equal(t, "The tool returned:\nok\n\nand summarize it\n\nin one line please", content)
	assert.True(t, h.o.Thinking())
}

func TestRejectedToolReleasesHeldMessages(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.o.Submit("read the readme")
	h.o.Submit("never mind")
	require.Nil(t, h.respond(t, readCall(), nil))

	require.NotNil(t, h.o.RejectTool())

	role, content := h.lastMessage(t)
	assert.Equal(t, "user", role)
	assert.Equal(t, "never mind", content)
	assert.True(t, h.o.Thinking())
}

func TestUnsafeModeSkipsConfirmation(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.o.Submit("/yolo")
	assert.Equal(t, "Unsafe mode on", h.o.Status())

	h.o.Submit("read it")
	cmd := h.respond(t, readCall(), nil)
	require.NotNil(t, cmd)
	assert.Equal(t, GateExecuting, h.o.Gate())
	assert.Nil(t, h.o.Pending())

	h.o.Update(runCmd(t, cmd))
	assert.Equal(t, 1, h.exec.callCount())
	assert.Equal(t, "read_file {\"path\":\"README.md\"}", h.exec.calls[0])
}

func TestOnlyFirstOfSeveralToolCallsIsProposed(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.o.Submit("do two things")
	c := provider.Completion{ToolCalls: []provider.ToolCall{
		{ID: "a", Name: "list_directory", Arguments: `{"path":"."}`},
		{ID: "b", Name: "read_file", Arguments: `{"path":"x"}`},
	}}
	h.respond(t, c, nil)

	require.NotNil(t, h.o.Pending())
	assert.Equal(t, "list_directory", h.o.Pending().ToolName)
}

func TestTextWithToolCallKeepsBoth(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	h.o.Submit("read it")
	c := readCall()
	c.Text = "Let me look at that file."
	h.respond(t, c, nil)

	role, content := h.lastMessage(t)
	assert.Equal(t, "assistant", role)
	assert.Equal(t, "Let me look at that file.", content)
	assert.Equal(t, GateAwaiting, h.o.Gate())
}

func TestLateToolDoneIsIgnored(t *testing.T) {
	h := newHarness(t, newBlockingProvider())
	assert.Nil(t, h.o.Update(toolDoneMsg{call: PendingToolCall{ToolName: "read_file"}, output: "late"}))
	assert.Equal(t, 0, h.o.History().Len())
}

func TestGateTransitions(t *testing.T) {
	var g gate
	_, ok := g.confirm()
	assert.False(t, ok)
	_, _, ok = g.finish()
	assert.False(t, ok)

	g.propose(PendingToolCall{ToolName: "x"}, tools.Descriptor{Summary: "d"})
	g.hold("later")
	require.NotNil(t, g.pending())
	_, _, ok = g.finish()
	assert.False(t, ok, "an awaiting call cannot finish")

	call, ok := g.confirm()
	require.True(t, ok)
	assert.Equal(t, "x", call.ToolName)
	assert.Nil(t, g.pending())
	_, _, ok = g.cancel()
	assert.False(t, ok, "an executing call cannot be cancelled")

	_, deferred, ok := g.finish()
	require.True(t, ok)
	assert.Equal(t, []string{"later"}, deferred)
	assert.Equal(t, GateIdle, g.state)
	assert.Empty(t, g.deferred)
}
