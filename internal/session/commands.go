package session

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	tea "github.com/charmbracelet/bubbletea"

	"pcli2rig/internal/config"
	"pcli2rig/internal/conversation"
	"pcli2rig/internal/mcp"
	"pcli2rig/internal/tools"
)

type command struct {
	names []string
	usage string
	help  string
	run   func(o *Orchestrator, args []string) tea.Cmd
}

// commands is filled in init because the help command reads it.
var commands []command

func init() {
	commands = []command{
		{names: []string{"/help", "/h", "/?"}, help: "Show this help message", run: (*Orchestrator).cmdHelp},
		{names: []string{"/quit", "/exit", "/q"}, help: "Exit the application", run: func(o *Orchestrator, _ []string) tea.Cmd { return o.quit() }},
		{names: []string{"/clear", "/cls"}, help: "Clear chat history", run: func(o *Orchestrator, _ []string) tea.Cmd { o.clearHistory(); return nil }},
		{names: []string{"/model"}, usage: "[name] [save]", help: "Show or set the model", run: (*Orchestrator).cmdModel},
		{names: []string{"/history", "/hist"}, help: "Show message count", run: (*Orchestrator).cmdHistory},
		{names: []string{"/status"}, help: "Show current status", run: (*Orchestrator).cmdStatus},
		{names: []string{"/yolo"}, help: "Toggle unsafe mode (skip tool confirmation)", run: (*Orchestrator).cmdYolo},
		{names: []string{"/tools"}, help: "List available tools", run: (*Orchestrator).cmdTools},
		{names: []string{"/mcp"}, usage: "[list|add <url> [name] [save]|refresh]", help: "Manage MCP servers", run: (*Orchestrator).cmdMCP},
	}
}

const keyHelp = `Keyboard Shortcuts:
  Enter             Send message
  Tab / Shift+Tab   Cycle focus: chat, input, logs
  ↑/↓, PgUp/PgDn    Scroll the focused pane
  Home / End        Jump to top / bottom
  Esc               Cancel the running request
  Ctrl+K            Clear chat history
  Ctrl+C            Quit
  Y/n               Confirm/cancel tool execution`

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// suggestCommand returns the closest known command within edit distance 2.
func suggestCommand(name string) string {
	best, bestDist := "", 3
	for _, c := range commands {
		for _, n := range c.names {
			if d := levenshtein.ComputeDistance(name, n); d < bestDist {
				best, bestDist = n, d
			}
		}
	}
	return best
}

func (o *Orchestrator) runCommand(text string) tea.Cmd {
	parts := strings.Fields(text)
	name := strings.ToLower(parts[0])
	o.log.Debug().Str("command", name).Msg("local command")
	c, ok := lookupCommand(name)
	if !ok {
		msg := fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name)
		if s := suggestCommand(name); s != "" {
			msg += fmt.Sprintf(" Did you mean %s?", s)
		}
		o.Notice(msg)
		return nil
	}
	return c.run(o, parts[1:])
}

func (o *Orchestrator) cmdHelp(_ []string) tea.Cmd {
	var b strings.Builder
	b.WriteString("Available Commands:\n")
	for _, c := range commands {
		left := strings.Join(c.names, ", ")
		if c.usage != "" {
			left = c.names[0] + " " + c.usage
		}
		fmt.Fprintf(&b, "  %-40s %s\n", left, c.help)
	}
	b.WriteString("\n")
	b.WriteString(keyHelp)
	o.Notice(b.String())
	return nil
}

func (o *Orchestrator) cmdModel(args []string) tea.Cmd {
	if len(args) == 0 {
		o.Notice(fmt.Sprintf("Current model: %s", o.model))
		return nil
	}
	o.model = args[0]
	o.status = "Model changed to: " + o.model
	o.log.Info().Str("model", o.model).Msg("model changed")
	if len(args) > 1 && strings.EqualFold(args[1], "save") {
		o.cfg.Model = o.model
		return o.saveCmd(fmt.Sprintf("Model %s saved", o.model))
	}
	o.Notice(fmt.Sprintf("Model set to '%s' for the next request.", o.model))
	return nil
}

func (o *Orchestrator) cmdHistory(_ []string) tea.Cmd {
	o.Notice(fmt.Sprintf("Chat history contains %d messages.", o.history.Len()))
	return nil
}

func (o *Orchestrator) cmdStatus(_ []string) tea.Cmd {
	snap := o.history.Snapshot()
	providerName := "none"
	if o.provider != nil {
		providerName = o.provider.Name()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", o.status)
	fmt.Fprintf(&b, "Model: %s\n", o.model)
	fmt.Fprintf(&b, "Provider: %s (%s)\n", providerName, o.cfg.Host)
	fmt.Fprintf(&b, "Messages: %d (%d user, %d assistant)\n",
		snap.Len(), snap.Count(conversation.RoleUser), snap.Count(conversation.RoleAssistant))
	fmt.Fprintf(&b, "Queued: %d\n", len(o.queue))
	fmt.Fprintf(&b, "Unsafe mode: %s\n", onOff(o.yolo))
	fmt.Fprintf(&b, "Tools: %d\n", len(o.tools.List()))
	if o.servers != nil {
		connected := 0
		servers := o.servers.Servers()
		for _, s := range servers {
			if s.Status == mcp.StatusConnected {
				connected++
			}
		}
		fmt.Fprintf(&b, "MCP servers: %d/%d connected", connected, len(servers))
	} else {
		b.WriteString("MCP servers: disabled")
	}
	o.Notice(b.String())
	return nil
}

func (o *Orchestrator) cmdYolo(_ []string) tea.Cmd {
	o.yolo = !o.yolo
	o.status = "Unsafe mode " + onOff(o.yolo)
	if o.yolo {
		o.log.Warn().Msg("unsafe mode on: tool calls run without confirmation")
	} else {
		o.log.Info().Msg("unsafe mode off")
	}
	return nil
}

func (o *Orchestrator) cmdTools(_ []string) tea.Cmd {
	o.Notice(tools.FormatList(o.tools.List()))
	return nil
}

func (o *Orchestrator) cmdMCP(args []string) tea.Cmd {
	if o.servers == nil {
		o.Notice("MCP support is not available in this session.")
		return nil
	}
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "list", "ls":
		o.Notice(mcp.FormatServers(o.servers.Servers()))
		return nil
	case "refresh":
		o.status = "Refreshing MCP servers..."
		servers, parent := o.servers, o.ctx
		return func() tea.Msg {
			err := servers.Refresh(parent)
			connected := 0
			for _, s := range servers.Servers() {
				if s.Status == mcp.StatusConnected {
					connected++
				}
			}
			status := fmt.Sprintf("MCP refreshed: %d connected", connected)
			if err != nil {
				status += " (" + compactSingleLine(cleanError(err), 80) + ")"
			}
			return actionDoneMsg{status: status}
		}
	case "add":
		if len(args) < 2 {
			o.status = "usage: /mcp add <url> [name] [save]"
			return nil
		}
		server := config.MCPServer{
			Name:    fmt.Sprintf("remote-%d", len(o.servers.Servers())),
			URL:     args[1],
			Enabled: true,
		}
		save := false
		for _, arg := range args[2:] {
			if strings.EqualFold(arg, "save") {
				save = true
				continue
			}
			server.Name = arg
		}
		o.status = fmt.Sprintf("Connecting to %s...", server.URL)
		servers, parent := o.servers, o.ctx
		return func() tea.Msg {
			return serverAddedMsg{server: server, save: save, err: servers.AddServer(parent, server)}
		}
	default:
		o.status = "usage: /mcp [list|add <url> [name] [save]|refresh]"
		return nil
	}
}

func (o *Orchestrator) onServerAdded(msg serverAddedMsg) tea.Cmd {
	if msg.err != nil {
		o.status = fmt.Sprintf("✗ MCP server %s unavailable: %s", msg.server.Name, compactSingleLine(cleanError(msg.err), 80))
		return nil
	}
	count := 0
	for _, s := range o.servers.Servers() {
		if s.Name == msg.server.Name {
			count = s.ToolCount
		}
	}
	o.status = fmt.Sprintf("Connected to %s (%d tools)", msg.server.Name, count)
	o.log.Info().Str("server", msg.server.Name).Int("tools", count).Msg("mcp server added")
	if !msg.save {
		return nil
	}
	o.cfg.Upsert(msg.server)
	return o.saveCmd(fmt.Sprintf("MCP server %s saved", msg.server.Name))
}

func (o *Orchestrator) saveCmd(done string) tea.Cmd {
	cfg, save := o.cfg, o.save
	return func() tea.Msg {
		path, err := save(cfg)
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("save config: %w", err)}
		}
		return actionDoneMsg{status: done, notice: fmt.Sprintf("%s to %s", done, path)}
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
