package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"pcli2rig/internal/provider"
)

// RemoteTool is a tool discovered on a remote MCP server.
type RemoteTool struct {
	Name        string
	Server      string
	Description string
	InputSchema json.RawMessage
}

// Remote is the source of remotely discovered tools.
type Remote interface {
	RemoteTools() []RemoteTool
	CallTool(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Info is one entry of the registry listing.
type Info struct {
	Name        string
	Description string
	Remote      bool
	Server      string
}

// Options configures the built-in tools.
type Options struct {
	FS             afero.Fs
	Dir            string
	Shell          string
	CommandTimeout time.Duration
}

// Registry holds the built-in tools and routes other names to the remote
// source. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builtins []Tool
	byName   map[string]Tool
	remote   Remote
}

// NewRegistry returns a registry with the five built-in tools.
func NewRegistry(opts Options) *Registry {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	ws := Workspace{FS: opts.FS, Dir: opts.Dir}
	r := &Registry{byName: map[string]Tool{}}
	for _, t := range Builtins(ws, opts.Shell, opts.CommandTimeout) {
		r.builtins = append(r.builtins, t)
		r.byName[t.Name()] = t
	}
	return r
}

// Builtins returns the built-in tools bound to ws.
func Builtins(ws Workspace, shell string, commandTimeout time.Duration) []Tool {
	return []Tool{
		readFileTool{ws: ws},
		writeFileTool{ws: ws},
		listDirectoryTool{ws: ws},
		runCommandTool{ws: ws, shell: shell, timeout: commandTimeout},
		searchCodeTool{ws: ws},
	}
}

// SetRemote installs the remote tool source. A nil remote removes it.
func (r *Registry) SetRemote(remote Remote) {
	r.mu.Lock()
	r.remote = remote
	r.mu.Unlock()
}

func (r *Registry) remoteTools() []RemoteTool {
	r.mu.RLock()
	remote := r.remote
	r.mu.RUnlock()
	if remote == nil {
		return nil
	}
	return remote.RemoteTools()
}

// List returns built-ins first, then remote tools sorted by name.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.builtins))
	for _, t := range r.builtins {
		out = append(out, Info{Name: t.Name(), Description: t.Description()})
	}
	remote := r.remoteTools()
	sort.Slice(remote, func(i, j int) bool { return remote[i].Name < remote[j].Name })
	for _, t := range remote {
		if _, shadowed := r.byName[t.Name]; shadowed {
			continue
		}
		out = append(out, Info{Name: t.Name, Description: t.Description, Remote: true, Server: t.Server})
	}
	return out
}

// RemoteNames returns the names of the remote tools, sorted.
func (r *Registry) RemoteNames() []string {
	var names []string
	for _, t := range r.remoteTools() {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the tool definitions offered to the model.
func (r *Registry) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(r.builtins))
	for _, t := range r.builtins {
		specs = append(specs, provider.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	remote := r.remoteTools()
	sort.Slice(remote, func(i, j int) bool { return remote[i].Name < remote[j].Name })
	for _, t := range remote {
		if _, shadowed := r.byName[t.Name]; shadowed {
			continue
		}
		specs = append(specs, provider.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
	}
	return specs
}

// Execute runs the named tool with JSON-encoded arguments.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	raw, err := normalizeArgs(name, argsJSON)
	if err != nil {
		return "", err
	}
	if t, ok := r.byName[name]; ok {
		return t.Execute(ctx, raw)
	}
	r.mu.RLock()
	remote := r.remote
	r.mu.RUnlock()
	if remote != nil {
		for _, t := range remote.RemoteTools() {
			if t.Name == name {
				return remote.CallTool(ctx, name, raw)
			}
		}
	}
	return "", toolErr(name, "Unknown tool: %s", name)
}

// Describe builds the confirmation descriptor for a pending call. It never
// fails; unparseable arguments are shown raw with a warning.
func (r *Registry) Describe(name, argsJSON string) Descriptor {
	raw, err := normalizeArgs(name, argsJSON)
	if err != nil {
		return Descriptor{Summary: compact(argsJSON, 200), Warnings: []string{err.Error()}}
	}
	if t, ok := r.byName[name]; ok {
		if p, ok := t.(Previewer); ok {
			desc, err := p.Preview(raw)
			if err != nil {
				return Descriptor{Summary: compact(string(raw), 200), Warnings: []string{err.Error()}}
			}
			return desc
		}
	}
	desc := Descriptor{Summary: compact(string(raw), 200)}
	if _, ok := r.byName[name]; !ok && !r.hasRemote(name) {
		desc.Warnings = append(desc.Warnings, "unknown tool")
	}
	return desc
}

func (r *Registry) hasRemote(name string) bool {
	for _, t := range r.remoteTools() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func normalizeArgs(name, argsJSON string) (json.RawMessage, error) {
	s := strings.TrimSpace(argsJSON)
	if s == "" || s == "null" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(s)) {
		return nil, toolErr(name, "invalid tool arguments: %s", compact(s, 120))
	}
	return json.RawMessage(s), nil
}

func compact(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit > 0 && len(s) > limit {
		return s[:limit-1] + "…"
	}
	return s
}

// FormatList renders the registry listing for the /tools command.
func FormatList(infos []Info) string {
	if len(infos) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, info := range infos {
		origin := "built-in"
		if info.Remote {
			origin = "mcp:" + info.Server
		}
		fmt.Fprintf(&b, "\n- **%s** (%s): %s", info.Name, origin, info.Description)
	}
	return b.String()
}
