package tui

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcli2rig/internal/config"
	"pcli2rig/internal/conversation"
	"pcli2rig/internal/provider"
	"pcli2rig/internal/session"
	"pcli2rig/internal/tools"
	"pcli2rig/internal/ui"
)

type scriptedProvider struct {
	mu      sync.Mutex
	n       int
	replies []provider.Completion
	calls   chan provider.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req provider.Request) (provider.Completion, error) {
	p.mu.Lock()
	n := p.n
	p.n++
	p.mu.Unlock()
	p.calls <- req
	if n >= len(p.replies) {
		return provider.Completion{Text: "done"}, nil
	}
	return p.replies[n], nil
}

func newTestModel(t *testing.T, p provider.Provider, fs afero.Fs) Model {
	t.Helper()
	cfg := config.Default()
	cfg.Path = "/tmp/pcli2-rig-tui-test/config.toml"
	r := ui.New(ui.WithoutBanner(), ui.WithMarkdownStyle("notty"))
	o := session.New(session.Deps{
		Config:   cfg,
		Provider: p,
		Tools:    tools.NewRegistry(tools.Options{FS: fs, Dir: "/work"}),
		Layout:   r,
		Log:      zerolog.Nop(),
		Save:     func(c config.Config) (string, error) { return c.Path, nil },
	})
	o.Notice(Welcome)
	return New(o, r)
}

func typeText(tm *teatest.TestModel, text string) {
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
}

func waitFor(t *testing.T, tm *teatest.TestModel, text string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte(text))
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(20*time.Millisecond))
}

func TestChatRoundTrip(t *testing.T) {
	p := &scriptedProvider{
		replies: []provider.Completion{{Text: "pong"}},
		calls:   make(chan provider.Request, 4),
	}
	tm := teatest.NewTestModel(t, newTestModel(t, p, afero.NewMemMapFs()), teatest.WithInitialTermSize(100, 30))

	waitFor(t, tm, "PCLI2-RIG")
	typeText(tm, "ping")
	waitFor(t, tm, "pong")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final, ok := tm.FinalModel(t).(Model)
	require.True(t, ok)
	snap := final.Session().History()
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, conversation.RoleSystem, snap.At(0).Role)
	assert.Equal(t, "ping", snap.At(1).Content)
	assert.Equal(t, "pong", snap.At(2).Content)

	req := <-p.calls
	assert.Equal(t, 2, req.Snapshot.Len())
}

func TestToolConfirmationFlow(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/notes.txt", []byte("remember the milk\n"), 0o644))
	p := &scriptedProvider{
		replies: []provider.Completion{
			{ToolCalls: []provider.ToolCall{{ID: "call_1", Name: "read_file", Arguments: `{"path":"notes.txt"}`}}},
			{Text: "You need milk."},
		},
		calls: make(chan provider.Request, 4),
	}
	tm := teatest.NewTestModel(t, newTestModel(t, p, fs), teatest.WithInitialTermSize(100, 30))

	typeText(tm, "what do I need?")
	waitFor(t, tm, "Execute this tool? (Y/n)")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	waitFor(t, tm, "You need milk.")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	snap := final.Session().History()
	require.Equal(t, 5, snap.Len())
	assert.Equal(t, conversation.RoleToolResult, snap.At(2).Role)
	assert.Contains(t, snap.At(2).Content, "remember the milk")
	assert.Contains(t, snap.At(3).Content, "The tool returned:")
}

func TestQuitCommandEndsProgram(t *testing.T) {
	p := &scriptedProvider{calls: make(chan provider.Request, 1)}
	tm := teatest.NewTestModel(t, newTestModel(t, p, afero.NewMemMapFs()), teatest.WithInitialTermSize(80, 24))
	typeText(tm, "/quit")
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	assert.True(t, tm.FinalModel(t).(Model).Session().Quitting())
	assert.Empty(t, p.calls)
}
