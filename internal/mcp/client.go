// Package mcp discovers and calls tools on remote MCP servers using the
// official go-sdk client. Remote servers are tried over streamable HTTP
// first and SSE second; servers configured with a command run over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"pcli2rig/internal/config"
	"pcli2rig/internal/tools"
)

// Status is the connection state of a server.
type Status string

const (
	StatusConnected Status = "connected"
	StatusDisabled  Status = "disabled"
	StatusFailed    Status = "failed"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultConnectRetries = 2
)

var ErrUnknownTool = errors.New("no MCP server owns this tool")

// ServerStatus is the externally visible state of one server.
type ServerStatus struct {
	Name      string
	URL       string
	Transport string
	Status    Status
	ToolCount int
	Error     string
	Info      string
}

type server struct {
	cfg       config.MCPServer
	session   *sdkmcp.ClientSession
	transport string
	tools     []*sdkmcp.Tool
	status    Status
	err       string
	info      string
}

// Client manages connections to MCP servers. It is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	servers map[string]*server
	sdk     *sdkmcp.Client
	log     zerolog.Logger

	httpClient     *http.Client
	connectTimeout time.Duration
	retries        uint64
	retryInterval  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base HTTP client for remote transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithConnectTimeout bounds the initial tool listing of each server.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithConnectRetries sets how many times a failed connection is retried.
func WithConnectRetries(n uint64, interval time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.retryInterval = interval
	}
}

// NewClient creates a client with no servers.
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		servers: make(map[string]*server),
		sdk: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    config.AppName,
			Version: config.Version,
		}, nil),
		log:            log.With().Str("component", "mcp").Logger(),
		connectTimeout: defaultConnectTimeout,
		retries:        defaultConnectRetries,
		retryInterval:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddServer connects to a server and lists its tools. A failed server is
// still recorded so it shows up in Servers with its error. Adding a name
// that already exists replaces the previous connection.
func (c *Client) AddServer(ctx context.Context, cfg config.MCPServer) error {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return fmt.Errorf("mcp server has no name")
	}
	cfg.Name = name

	if !cfg.Enabled {
		c.put(&server{cfg: cfg, status: StatusDisabled})
		c.log.Info().Str("server", name).Msg("mcp server disabled")
		return nil
	}

	srv, err := c.connectWithRetry(ctx, cfg)
	if err != nil {
		c.put(&server{cfg: cfg, status: StatusFailed, err: err.Error()})
		c.log.Warn().Err(err).Str("server", name).Msg("mcp server unavailable")
		return err
	}
	c.put(srv)
	c.log.Info().
		Str("server", name).
		Str("transport", srv.transport).
		Int("tools", len(srv.tools)).
		Msg("mcp server connected")
	return nil
}

// ConnectAll adds every server. Failures are logged and collected, never
// fatal.
func (c *Client) ConnectAll(ctx context.Context, servers []config.MCPServer) error {
	var errs []error
	for _, s := range servers {
		if err := c.AddServer(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh reconnects every enabled server and re-lists its tools.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	cfgs := make([]config.MCPServer, 0, len(c.servers))
	for _, s := range c.servers {
		cfgs = append(cfgs, s.cfg)
	}
	c.mu.RUnlock()
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
	return c.ConnectAll(ctx, cfgs)
}

func (c *Client) put(s *server) {
	c.mu.Lock()
	old := c.servers[s.cfg.Name]
	c.servers[s.cfg.Name] = s
	c.mu.Unlock()
	if old != nil && old.session != nil {
		_ = old.session.Close()
	}
}

func (c *Client) connectWithRetry(ctx context.Context, cfg config.MCPServer) (*server, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)

	var srv *server
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		s, err := c.connect(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Debug().Err(err).Str("server", cfg.Name).Int("attempt", attempt).Msg("mcp connect failed")
			return err
		}
		srv = s
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func (c *Client) connect(ctx context.Context, cfg config.MCPServer) (*server, error) {
	if cfg.Command != "" {
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		connectCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
		return c.open(connectCtx, cfg, "stdio", &sdkmcp.CommandTransport{Command: cmd})
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("server %s has neither url nor command", cfg.Name)
	}

	hc := c.httpClientFor(cfg)
	candidates := []struct {
		name      string
		transport sdkmcp.Transport
	}{
		{"streamable", &sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: hc}},
		{"sse", &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: hc}},
	}
	var lastErr error
	for _, candidate := range candidates {
		// The session outlives this call, so the stream must not be tied to ctx.
		srv, err := c.open(context.Background(), cfg, candidate.name, candidate.transport)
		if err != nil {
			lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
			continue
		}
		return srv, nil
	}
	return nil, lastErr
}

func (c *Client) open(ctx context.Context, cfg config.MCPServer, name string, transport sdkmcp.Transport) (*server, error) {
	session, err := c.sdk.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	srv := &server{cfg: cfg, session: session, transport: name, status: StatusConnected}
	if init := session.InitializeResult(); init != nil && init.ServerInfo != nil {
		srv.info = strings.TrimSpace(init.ServerInfo.Name + " " + init.ServerInfo.Version)
	}

	listCtx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
	defer cancel()
	result, err := session.ListTools(listCtx, nil)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	srv.tools = result.Tools
	return srv, nil
}

func (c *Client) httpClientFor(cfg config.MCPServer) *http.Client {
	base := c.httpClient
	if base == nil {
		base = &http.Client{}
	}
	hc := *base
	hc.Timeout = 0
	if cfg.Token == "" {
		return &hc
	}
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = &headerRoundTripper{
		headers: map[string]string{"Authorization": "Bearer " + cfg.Token},
		next:    next,
	}
	return &hc
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}

// RemoteTools returns the tools of every connected server, named
// <server>_<tool> after sanitising both parts.
func (c *Client) RemoteTools() []tools.RemoteTool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []tools.RemoteTool
	for name, srv := range c.servers {
		if srv.status != StatusConnected {
			continue
		}
		for _, t := range srv.tools {
			out = append(out, tools.RemoteTool{
				Name:        QualifiedName(name, t.Name),
				Server:      name,
				Description: t.Description,
				InputSchema: schemaJSON(t.InputSchema),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CallTool invokes a qualified tool name on the server that owns it.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	session, toolName, err := c.resolve(name)
	if err != nil {
		return "", err
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}
	c.log.Debug().Str("tool", name).Str("remote_tool", toolName).Msg("mcp call")

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: toolName, Arguments: argsMap})
	if err != nil {
		return "", err
	}
	text := contentText(result.Content)
	if result.IsError {
		if text == "" {
			return "", fmt.Errorf("tool execution failed")
		}
		return "", fmt.Errorf("tool error: %s", text)
	}
	if text == "" && result.StructuredContent != nil {
		if data, err := json.MarshalIndent(result.StructuredContent, "", "  "); err == nil {
			text = string(data)
		}
	}
	if text == "" {
		text = "Tool executed successfully (no result)"
	}
	return text, nil
}

func (c *Client) resolve(name string) (*sdkmcp.ClientSession, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Longest server prefix wins so "a_b" beats "a" for "a_b_tool".
	var (
		best     *server
		bestName string
		tool     string
	)
	for srvName, srv := range c.servers {
		if srv.status != StatusConnected || srv.session == nil {
			continue
		}
		for _, t := range srv.tools {
			if QualifiedName(srvName, t.Name) == name && len(srvName) > len(bestName) {
				best, bestName, tool = srv, srvName, t.Name
			}
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return best.session, tool, nil
}

// Servers reports every known server sorted by name.
func (c *Client) Servers() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ServerStatus, 0, len(c.servers))
	for name, srv := range c.servers {
		url := srv.cfg.URL
		if srv.cfg.Command != "" {
			url = strings.TrimSpace(srv.cfg.Command + " " + strings.Join(srv.cfg.Args, " "))
		}
		out = append(out, ServerStatus{
			Name:      name,
			URL:       url,
			Transport: srv.transport,
			Status:    srv.status,
			ToolCount: len(srv.tools),
			Error:     srv.err,
			Info:      srv.info,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ConnectedCount returns the number of connected servers.
func (c *Client) ConnectedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, srv := range c.servers {
		if srv.status == StatusConnected {
			n++
		}
	}
	return n
}

// Close disconnects all servers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, srv := range c.servers {
		if srv.session != nil {
			_ = srv.session.Close()
		}
	}
	c.servers = make(map[string]*server)
	return nil
}

// QualifiedName is the registry name of a remote tool.
func QualifiedName(serverName, toolName string) string {
	return sanitize(serverName) + "_" + sanitize(toolName)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func schemaJSON(schema any) json.RawMessage {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil || string(data) == "null" {
		return nil
	}
	return data
}

func contentText(content []sdkmcp.Content) string {
	var parts []string
	for _, item := range content {
		switch v := item.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		case *sdkmcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", v.MIMEType, len(v.Data)))
		case *sdkmcp.EmbeddedResource:
			if v.Resource != nil && v.Resource.Text != "" {
				parts = append(parts, v.Resource.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// FormatServers renders the server listing for the /mcp command.
func FormatServers(servers []ServerStatus) string {
	if len(servers) == 0 {
		return "No MCP servers configured."
	}
	var b strings.Builder
	b.WriteString("MCP servers:\n")
	for _, s := range servers {
		fmt.Fprintf(&b, "\n- **%s** %s (%s", s.Name, s.URL, s.Status)
		if s.Status == StatusConnected {
			fmt.Fprintf(&b, ", %s, %d tools", s.Transport, s.ToolCount)
		}
		b.WriteString(")")
		if s.Error != "" {
			b.WriteString(": " + s.Error)
		}
	}
	return b.String()
}
