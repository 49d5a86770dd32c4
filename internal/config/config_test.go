package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_API_KEY", "PCLI2_RIG_CONFIG", "PCLI2_RIG_MODEL", "PCLI2_RIG_HOST", "PCLI2_RIG_YOLO"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	isolateEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.False(t, cfg.Yolo)
	assert.Equal(t, 10*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 100, cfg.LogCapacity)
	assert.Equal(t, 200*time.Millisecond, cfg.LogSyncInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.SpinnerInterval)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadReadsTOML(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
model = "llama3.2:3b"
host = "127.0.0.1:11434/"
yolo = true
request_timeout = "90s"

[[mcp_servers]]
name = "pcli2"
url = "http://localhost:8080/mcp"

[[mcp_servers]]
name = "off"
url = "http://localhost:9090/mcp"
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:3b", cfg.Model)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Host)
	assert.True(t, cfg.Yolo)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	require.Len(t, cfg.MCPServers, 2)
	assert.True(t, cfg.MCPServers[0].Enabled)
	assert.False(t, cfg.MCPServers[1].Enabled)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OLLAMA_MODEL", "phi4")
	t.Setenv("PCLI2_RIG_YOLO", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, "phi4", cfg.Model)
	assert.True(t, cfg.Yolo)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = "), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Path = path
	cfg.Model = "qwen3:8b"
	cfg.Upsert(MCPServer{Name: "pcli2", URL: "http://localhost:8080/mcp", Enabled: true})
	cfg.Upsert(MCPServer{Name: "pcli2", URL: "http://localhost:8081/mcp", Enabled: true})

	written, err := Save(cfg)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen3:8b", loaded.Model)
	require.Len(t, loaded.MCPServers, 1)
	assert.Equal(t, "http://localhost:8081/mcp", loaded.MCPServers[0].URL)
	assert.True(t, loaded.MCPServers[0].Enabled)
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, DefaultHost, NormalizeHost("  "))
	assert.Equal(t, "http://box:11434", NormalizeHost("box:11434"))
	assert.Equal(t, "https://x.example", NormalizeHost("https://x.example//"))
}

func TestParseMCPConfig(t *testing.T) {
	data := []byte(`{
  // exported by pcli2-mcp
  "mcpServers": {
    "pcli2": {
      "command": "npx",
      "args": ["-y", "mcp-remote", "http://localhost:8080/mcp"],
    },
    "direct": {"url": "https://tools.example/mcp"},
    "local": {"command": "fs-server", "args": ["--root", "."]},
    "empty": {}
  }
}`)
	servers, err := ParseMCPConfig(data)
	require.NoError(t, err)
	require.Len(t, servers, 3)

	assert.Equal(t, "direct", servers[0].Name)
	assert.Equal(t, "https://tools.example/mcp", servers[0].URL)
	assert.Equal(t, "local", servers[1].Name)
	assert.Equal(t, "fs-server", servers[1].Command)
	assert.Empty(t, servers[1].URL)
	assert.Equal(t, "pcli2", servers[2].Name)
	assert.Equal(t, "http://localhost:8080/mcp", servers[2].URL)
	assert.Empty(t, servers[2].Command)
	for _, s := range servers {
		assert.True(t, s.Enabled)
	}
}

func TestParseMCPConfigInvalid(t *testing.T) {
	_, err := ParseMCPConfig([]byte("not json"))
	assert.Error(t, err)
}

func TestReadMCPConfigFromStdin(t *testing.T) {
	servers, err := ReadMCPConfig("-", strings.NewReader(`{"mcpServers":{"a":{"args":["https://a.example"]}}}`))
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "https://a.example", servers[0].URL)
}

func TestRemoteServers(t *testing.T) {
	servers := RemoteServers([]string{"http://a", " ", "http://b"}, 1)
	require.Len(t, servers, 2)
	assert.Equal(t, "remote-1", servers[0].Name)
	assert.Equal(t, "remote-2", servers[1].Name)
}

func TestPathsFollowXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("PCLI2_RIG_CONFIG", "")
	assert.Equal(t, filepath.Join(dir, AppName), StateDir())

	t.Setenv("PCLI2_RIG_CONFIG", "/tmp/x.toml")
	assert.Equal(t, "/tmp/x.toml", DefaultPath())
}
