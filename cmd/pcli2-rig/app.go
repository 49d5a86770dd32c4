package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"pcli2rig/internal/config"
	"pcli2rig/internal/logging"
	"pcli2rig/internal/logring"
	"pcli2rig/internal/mcp"
	"pcli2rig/internal/provider"
	"pcli2rig/internal/session"
	"pcli2rig/internal/tools"
	"pcli2rig/internal/ui"
)

type appOptions struct {
	level string
	// servers are connected for this run only and never saved.
	servers []config.MCPServer
	// logOutput replaces the log file; used by tests.
	logOutput io.Writer
}

// app is the wired object graph of one interactive run.
type app struct {
	log      zerolog.Logger
	relay    *logring.Relay
	registry *tools.Registry
	mcp      *mcp.Client
	renderer *ui.Renderer
	session  *session.Orchestrator
	closers  []io.Closer
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	a := &app{relay: logring.NewRelay(cfg.LogCapacity)}

	out, logPath := opts.logOutput, ""
	if out == nil {
		f, path, err := logging.OpenFile(config.StateDir())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		out, logPath = f, path
	}
	a.log = logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.level),
		Output: out,
		Relay:  a.relay,
	})
	a.log.Info().
		Str("version", config.Version).
		Str("provider", cfg.Provider).
		Str("host", cfg.Host).
		Str("model", cfg.Model).
		Str("log_file", logPath).
		Msg("starting")
	if cfg.Yolo {
		a.log.Warn().Msg("unsafe mode on: tool calls run without confirmation")
	}

	p, err := newProvider(ctx, cfg, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = tools.NewRegistry(tools.Options{Dir: workDir(), CommandTimeout: cfg.ToolTimeout})
	a.mcp = mcp.NewClient(a.log)
	a.closers = append(a.closers, a.mcp)
	a.registry.SetRemote(a.mcp)

	servers := append(append([]config.MCPServer(nil), cfg.MCPServers...), opts.servers...)
	if len(servers) > 0 {
		if err := a.mcp.ConnectAll(ctx, servers); err != nil {
			a.log.Warn().Err(err).Msg("some MCP servers are unavailable")
		}
		a.log.Info().
			Int("servers", len(servers)).
			Int("connected", a.mcp.ConnectedCount()).
			Int("tools", len(a.registry.RemoteNames())).
			Msg("mcp discovery finished")
	}

	a.renderer = ui.New()
	a.session = session.New(session.Deps{
		Config:   cfg,
		Provider: p,
		Tools:    a.registry,
		Servers:  a.mcp,
		Relay:    a.relay,
		Layout:   a.renderer,
		Log:      a.log,
		Context:  ctx,
	})
	return a, nil
}

func newProvider(ctx context.Context, cfg config.Config, log zerolog.Logger) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err := provider.NewOpenAIProvider(ctx, provider.OpenAIConfig{
			BaseURL: provider.OpenAIBaseURL(cfg.Host),
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		return p, nil
	case config.ProviderOllama, "":
		return provider.NewOllamaProvider(cfg.Host, log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want %s or %s)", cfg.Provider, config.ProviderOllama, config.ProviderOpenAI)
	}
}

// Close shuts the session down and releases files and MCP sessions.
func (a *app) Close() {
	if a.session != nil {
		a.session.Shutdown()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
