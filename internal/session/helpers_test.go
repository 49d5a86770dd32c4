package session

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pcli2rig/internal/config"
	"pcli2rig/internal/mcp"
	"pcli2rig/internal/provider"
	"pcli2rig/internal/task"
	"pcli2rig/internal/tools"
)

// blockingProvider never answers on its own; it returns once ctx ends.
type blockingProvider struct {
	mu       sync.Mutex
	requests []provider.Request
	started  chan provider.Request
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{started: make(chan provider.Request, 16)}
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	p.started <- req
	<-ctx.Done()
	return provider.Completion{}, ctx.Err()
}

func (p *blockingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// replyProvider answers immediately.
type replyProvider struct {
	completion provider.Completion
	err        error
}

func (p replyProvider) Name() string { return "reply" }

func (p replyProvider) Complete(context.Context, provider.Request) (provider.Completion, error) {
	return p.completion, p.err
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []string
	output string
	err    error
	remote []string
}

func (f *fakeExecutor) Execute(_ context.Context, name, argsJSON string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+argsJSON)
	return f.output, f.err
}

func (f *fakeExecutor) Describe(name, argsJSON string) tools.Descriptor {
	return tools.Descriptor{Summary: argsJSON}
}

func (f *fakeExecutor) Specs() []provider.ToolSpec {
	return []provider.ToolSpec{{Name: "read_file", Description: "Read a file"}}
}

func (f *fakeExecutor) List() []tools.Info {
	return []tools.Info{{Name: "read_file", Description: "Read a file"}}
}

func (f *fakeExecutor) RemoteNames() []string { return f.remote }

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeServers struct {
	added    []config.MCPServer
	addErr   error
	refreshN int
	status   []mcp.ServerStatus
}

func (f *fakeServers) AddServer(_ context.Context, s config.MCPServer) error {
	f.added = append(f.added, s)
	if f.addErr != nil {
		f.status = append(f.status, mcp.ServerStatus{Name: s.Name, URL: s.URL, Status: mcp.StatusFailed})
		return f.addErr
	}
	f.status = append(f.status, mcp.ServerStatus{Name: s.Name, URL: s.URL, Status: mcp.StatusConnected, ToolCount: 2})
	return nil
}

func (f *fakeServers) Refresh(context.Context) error {
	f.refreshN++
	return nil
}

func (f *fakeServers) Servers() []mcp.ServerStatus { return f.status }

type fakeLayout struct{}

func (fakeLayout) PaneAt(_, _, row int) (Pane, bool) {
	switch {
	case row < 10:
		return PaneChat, true
	case row < 13:
		return PaneInput, true
	case row < 19:
		return PaneLogs, true
	default:
		return 0, false
	}
}

func (fakeLayout) MaxScroll(Pane, View) int { return 20 }

type harness struct {
	o     *Orchestrator
	exec  *fakeExecutor
	saved []config.Config
}

func newHarness(t *testing.T, p provider.Provider, mutate ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{exec: &fakeExecutor{output: "ok"}}
	cfg := config.Default()
	cfg.Path = "/tmp/pcli2-rig-test/config.toml"
	d := Deps{
		Config:   cfg,
		Provider: p,
		Tools:    h.exec,
		Log:      zerolog.Nop(),
		Save: func(c config.Config) (string, error) {
			h.saved = append(h.saved, c)
			return c.Path, nil
		},
	}
	for _, m := range mutate {
		m(&d)
	}
	h.o = New(d)
	t.Cleanup(h.o.Shutdown)
	return h
}

func (h *harness) respond(t *testing.T, c provider.Completion, err error) tea.Cmd {
	t.Helper()
	require.NotNil(t, h.o.token, "no request in flight")
	return h.o.OnResponse(task.Response{ID: h.o.token.ID(), Completion: c, Err: err})
}

func (h *harness) lastMessage(t *testing.T) (string, string) {
	t.Helper()
	snap := h.o.History()
	require.Greater(t, snap.Len(), 0)
	m := snap.At(snap.Len() - 1)
	return m.Role.String(), m.Content
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyType(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func receive(t *testing.T, ch <-chan task.Response) task.Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no response from request task")
		return task.Response{}
	}
}

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func providerText(s string) provider.Completion {
	return provider.Completion{Text: s}
}
