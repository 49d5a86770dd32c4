package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcli2rig/internal/config"
	"pcli2rig/internal/provider"
)

const pcli2MCPConfig = `{
  // exported by pcli2-mcp
  "mcpServers": {
    "pcli2": {"command": "npx", "args": ["-y", "mcp-remote", "http://localhost:8080/mcp"]},
  }
}`

func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	t.Setenv("PCLI2_RIG_CONFIG", path)
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "pcli2-rig "+config.Version+"\n", out)
}

func TestApplyFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-m", "llama3.2", "--yolo"}))
	opts := &rootOptions{model: "llama3.2", host: config.DefaultHost, provider: config.DefaultProvider, yolo: true}

	cfg := config.Default()
	cfg.Host = "http://gpu-box:11434"
	require.NoError(t, applyFlags(cmd, opts, &cfg))

	assert.Equal(t, "llama3.2", cfg.Model)
	assert.True(t, cfg.Yolo)
	assert.Equal(t, "http://gpu-box:11434", cfg.Host, "unset flag keeps the configured host")
}

func TestApplyFlagsRejectsUnknownProvider(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--provider", "bard"}))
	cfg := config.Default()
	err := applyFlags(cmd, &rootOptions{provider: "bard"}, &cfg)
	assert.ErrorContains(t, err, `unknown provider "bard"`)
}

func TestSetupMCPImportsAndSaves(t *testing.T) {
	path := isolateConfig(t)

	out, err := execute(t, pcli2MCPConfig, "setup-mcp", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 MCP server(s)")
	assert.Contains(t, out, "pcli2 http://localhost:8080/mcp")
	assert.Contains(t, out, path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.MCPServers[0].URL)
	assert.True(t, cfg.MCPServers[0].Enabled)
}

func TestSetupMCPFlagAlias(t *testing.T) {
	isolateConfig(t)
	out, err := execute(t, pcli2MCPConfig, "--setup-mcp", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 MCP server(s)")
}

func TestSetupMCPWithoutServersFails(t *testing.T) {
	isolateConfig(t)
	_, err := execute(t, `{"mcpServers": {}}`, "setup-mcp", "-")
	assert.ErrorContains(t, err, "no MCP servers found in -")
}

func TestSessionServersFromFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(pcli2MCPConfig))
	opts := &rootOptions{mcpConfig: "-", mcpRemotes: []string{"http://a/mcp", "http://b/mcp"}}

	servers, err := sessionServers(cmd, opts, 2)
	require.NoError(t, err)
	require.Len(t, servers, 3)
	assert.Equal(t, "pcli2", servers[0].Name)
	assert.Equal(t, "remote-3", servers[1].Name)
	assert.Equal(t, "remote-4", servers[2].Name)
}

func TestLogLevelFromFlags(t *testing.T) {
	assert.Equal(t, "DEBUG", logLevel(&rootOptions{verbose: true, logLevel: "ERROR"}))
	assert.Equal(t, "WARN", logLevel(&rootOptions{logLevel: "WARN"}))
}

func TestNewProvider(t *testing.T) {
	cfg := config.Default()
	p, err := newProvider(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &provider.OllamaProvider{}, p)

	cfg.Provider = config.ProviderOpenAI
	p, err = newProvider(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	cfg.Provider = "bard"
	_, err = newProvider(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewAppWiresSession(t *testing.T) {
	isolateConfig(t)
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Model = "test-model"

	a, err := newApp(context.Background(), cfg, appOptions{level: "DEBUG", logOutput: &logs})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "test-model", a.session.Model())
	assert.Len(t, a.registry.List(), 5)
	assert.Empty(t, a.mcp.Servers())
	assert.Contains(t, logs.String(), `"message":"starting"`)
	assert.Greater(t, a.relay.Len(), 0)
	assert.Greater(t, a.session.SyncLogs(), 0)
}
