package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pcli2rig/internal/config"
	"pcli2rig/internal/tui"
)

type rootOptions struct {
	model      string
	host       string
	provider   string
	yolo       bool
	verbose    bool
	logLevel   string
	mcpConfig  string
	mcpRemotes []string
	setupMCP   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Local AI agent for the terminal",
		Long: `pcli2-rig is a terminal chat client for a locally hosted language model.
The model can propose tool calls (files, shell, search and tools from MCP
servers); every call is shown for confirmation before it runs.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.setupMCP != "" {
				return runSetupMCP(cmd, opts.setupMCP)
			}
			return runRoot(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.model, "model", "m", config.DefaultModel, "Model to use (env OLLAMA_MODEL)")
	f.StringVarP(&opts.host, "host", "H", config.DefaultHost, "Model server host (env OLLAMA_HOST)")
	f.StringVar(&opts.provider, "provider", config.DefaultProvider, "Provider: ollama or openai")
	f.BoolVar(&opts.yolo, "yolo", false, "Run tool calls without confirmation")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&opts.logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	f.StringVar(&opts.mcpConfig, "mcp-config", "", "pcli2-mcp JSON file (or - for stdin) with MCP servers for this session")
	f.StringArrayVar(&opts.mcpRemotes, "mcp-remote", nil, "URL of an MCP server for this session (repeatable)")
	f.StringVar(&opts.setupMCP, "setup-mcp", "", "Import MCP servers from a pcli2-mcp JSON file (or -) into the config and exit")

	cmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}}\n", config.AppName))
	cmd.AddCommand(newSetupMCPCmd(), newServeToolsCmd())
	return cmd
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command, opts *rootOptions, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Model = opts.model
	}
	if f.Changed("host") {
		cfg.Host = opts.host
	}
	if f.Changed("provider") {
		name := strings.ToLower(strings.TrimSpace(opts.provider))
		if name != config.ProviderOllama && name != config.ProviderOpenAI {
			return fmt.Errorf("unknown provider %q (want %s or %s)", opts.provider, config.ProviderOllama, config.ProviderOpenAI)
		}
		cfg.Provider = name
	}
	if f.Changed("yolo") {
		cfg.Yolo = opts.yolo
	}
	cfg.Normalize()
	return nil
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, opts, &cfg); err != nil {
		return err
	}

	extra, err := sessionServers(cmd, opts, len(cfg.MCPServers))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{
		level:   logLevel(opts),
		servers: extra,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.session.Notice(tui.Welcome)
	return tui.Run(ctx, tui.New(a.session, a.renderer))
}

// sessionServers collects the MCP servers given on the command line.
func sessionServers(cmd *cobra.Command, opts *rootOptions, existing int) ([]config.MCPServer, error) {
	var out []config.MCPServer
	if opts.mcpConfig != "" {
		servers, err := config.ReadMCPConfig(opts.mcpConfig, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		out = append(out, servers...)
	}
	out = append(out, config.RemoteServers(opts.mcpRemotes, existing+len(out))...)
	return out, nil
}

func logLevel(opts *rootOptions) string {
	if opts.verbose {
		return "DEBUG"
	}
	return opts.logLevel
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func workDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}
