// Package config loads and saves the pcli2-rig configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultModel           = "qwen2.5-coder:3b"
	DefaultHost            = "http://localhost:11434"
	DefaultProvider        = ProviderOllama
	DefaultRequestTimeout  = 10 * time.Minute
	DefaultToolTimeout     = 2 * time.Minute
	DefaultLogCapacity     = 100
	DefaultLogSyncInterval = 200 * time.Millisecond
	DefaultSpinnerInterval = 500 * time.Millisecond
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// MCPServer describes one remote tool server. A server with a URL is reached
// over HTTP; a server with only a Command is spawned and spoken to over stdio.
type MCPServer struct {
	Name    string   `mapstructure:"name"`
	URL     string   `mapstructure:"url"`
	Token   string   `mapstructure:"token"`
	Enabled bool     `mapstructure:"enabled"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// Config holds application configuration.
type Config struct {
	Model           string        `mapstructure:"model"`
	Host            string        `mapstructure:"host"`
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	Yolo            bool          `mapstructure:"yolo"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	LogCapacity     int           `mapstructure:"log_capacity"`
	LogSyncInterval time.Duration `mapstructure:"log_sync_interval"`
	SpinnerInterval time.Duration `mapstructure:"spinner_interval"`
	MCPServers      []MCPServer   `mapstructure:"mcp_servers"`

	// Path is the file the config was read from or will be saved to.
	Path string `mapstructure:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:           DefaultModel,
		Host:            DefaultHost,
		Provider:        DefaultProvider,
		RequestTimeout:  DefaultRequestTimeout,
		ToolTimeout:     DefaultToolTimeout,
		LogCapacity:     DefaultLogCapacity,
		LogSyncInterval: DefaultLogSyncInterval,
		SpinnerInterval: DefaultSpinnerInterval,
		Path:            DefaultPath(),
	}
}

// Load reads configuration from path (DefaultPath when empty) and the
// environment. A missing file is not an error. Env var overrides use prefix
// PCLI2_RIG_; OLLAMA_HOST and OLLAMA_MODEL are honoured as well.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	v := viper.New()

	def := Default()
	v.SetDefault("model", def.Model)
	v.SetDefault("host", def.Host)
	v.SetDefault("provider", def.Provider)
	v.SetDefault("api_key", "")
	v.SetDefault("yolo", false)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("tool_timeout", def.ToolTimeout)
	v.SetDefault("log_capacity", def.LogCapacity)
	v.SetDefault("log_sync_interval", def.LogSyncInterval)
	v.SetDefault("spinner_interval", def.SpinnerInterval)

	v.SetConfigType("toml")
	v.SetConfigFile(path)

	v.SetEnvPrefix("PCLI2_RIG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("host", "PCLI2_RIG_HOST", "OLLAMA_HOST")
	_ = v.BindEnv("model", "PCLI2_RIG_MODEL", "OLLAMA_MODEL")
	_ = v.BindEnv("api_key", "PCLI2_RIG_API_KEY", "OPENAI_API_KEY")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	defaultEnabled(&c, v.Get("mcp_servers"))
	c.Path = path
	c.Normalize()
	return c, nil
}

// defaultEnabled turns on servers whose table omits the enabled key.
func defaultEnabled(c *Config, raw any) {
	entries, ok := raw.([]any)
	if !ok {
		return
	}
	for i, entry := range entries {
		table, ok := entry.(map[string]any)
		if !ok || i >= len(c.MCPServers) {
			continue
		}
		if _, set := table["enabled"]; !set {
			c.MCPServers[i].Enabled = true
		}
	}
}

// Normalize trims values and replaces out-of-range settings with defaults.
func (c *Config) Normalize() {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	c.Host = NormalizeHost(c.Host)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider != ProviderOpenAI {
		c.Provider = ProviderOllama
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.LogCapacity < 10 || c.LogCapacity > 10000 {
		c.LogCapacity = DefaultLogCapacity
	}
	if c.LogSyncInterval < 10*time.Millisecond {
		c.LogSyncInterval = DefaultLogSyncInterval
	}
	if c.SpinnerInterval < 10*time.Millisecond {
		c.SpinnerInterval = DefaultSpinnerInterval
	}
	servers := c.MCPServers[:0]
	for i, s := range c.MCPServers {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" && strings.TrimSpace(s.Command) == "" {
			continue
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("remote-%d", i)
		}
		servers = append(servers, s)
	}
	c.MCPServers = servers
}

// NormalizeHost adds a scheme when missing and drops trailing slashes.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

// Save writes cfg to cfg.Path (DefaultPath when empty), creating the config
// directory if needed. It returns the path written.
func Save(cfg Config) (string, error) {
	path := cfg.Path
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("model", cfg.Model)
	v.Set("host", cfg.Host)
	v.Set("provider", cfg.Provider)
	if cfg.APIKey != "" {
		v.Set("api_key", cfg.APIKey)
	}
	v.Set("yolo", cfg.Yolo)
	v.Set("request_timeout", cfg.RequestTimeout.String())
	v.Set("tool_timeout", cfg.ToolTimeout.String())
	v.Set("log_capacity", cfg.LogCapacity)
	v.Set("log_sync_interval", cfg.LogSyncInterval.String())
	v.Set("spinner_interval", cfg.SpinnerInterval.String())

	servers := make([]map[string]any, 0, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		entry := map[string]any{
			"name":    s.Name,
			"enabled": s.Enabled,
		}
		if s.URL != "" {
			entry["url"] = s.URL
		}
		if s.Token != "" {
			entry["token"] = s.Token
		}
		if s.Command != "" {
			entry["command"] = s.Command
			entry["args"] = s.Args
		}
		servers = append(servers, entry)
	}
	v.Set("mcp_servers", servers)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// Upsert replaces the server with the same name or appends it.
func (c *Config) Upsert(server MCPServer) {
	for i := range c.MCPServers {
		if c.MCPServers[i].Name == server.Name {
			c.MCPServers[i] = server
			return
		}
	}
	c.MCPServers = append(c.MCPServers, server)
}
