package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// ParseMCPConfig reads the pcli2-mcp JSON format:
//
//	{
//	  "mcpServers": {
//	    "pcli2": {"command": "npx", "args": ["-y", "mcp-remote", "http://localhost:8080/mcp"]}
//	  }
//	}
//
// A server's URL is its "url" field or else the first http(s) argument. A
// server with neither is kept as a stdio command. Comments and trailing
// commas are accepted. Servers are returned sorted by name.
func ParseMCPConfig(data []byte) ([]MCPServer, error) {
	var doc struct {
		MCPServers map[string]struct {
			URL     string   `json:"url"`
			Command string   `json:"command"`
			Args    []string `json:"args"`
			Token   string   `json:"token"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}

	names := make([]string, 0, len(doc.MCPServers))
	for name := range doc.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	servers := make([]MCPServer, 0, len(names))
	for _, name := range names {
		entry := doc.MCPServers[name]
		server := MCPServer{Name: name, Token: entry.Token, Enabled: true}
		server.URL = strings.TrimSpace(entry.URL)
		if server.URL == "" {
			server.URL = firstHTTPArg(entry.Args)
		}
		if server.URL == "" {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			server.Command = entry.Command
			server.Args = entry.Args
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// ReadMCPConfig reads path, or stdin when path is "-", and parses it.
func ReadMCPConfig(path string, stdin io.Reader) ([]MCPServer, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read mcp config: %w", err)
	}
	return ParseMCPConfig(data)
}

// RemoteServers turns --mcp-remote URLs into server entries named remote-N,
// numbered after the existing count.
func RemoteServers(urls []string, existing int) []MCPServer {
	out := make([]MCPServer, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, MCPServer{
			Name:    fmt.Sprintf("remote-%d", existing+len(out)),
			URL:     u,
			Enabled: true,
		})
	}
	return out
}

func firstHTTPArg(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			return arg
		}
	}
	return ""
}
