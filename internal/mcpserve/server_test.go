package mcpserve

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcli2rig/internal/tools"
)

func testTools(t *testing.T) []tools.Tool {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/notes.txt", []byte("alpha\nbeta\n"), 0o644))
	return tools.Builtins(tools.Workspace{FS: fs, Dir: "/ws"}, "", 0)
}

func TestServerRegistersBuiltins(t *testing.T) {
	s := NewServer(testTools(t), zerolog.Nop())
	for _, name := range []string{"read_file", "write_file", "list_directory", "run_command", "search_code"} {
		assert.NotNil(t, s.GetTool(name), name)
	}
}

func TestHandlerReturnsToolOutput(t *testing.T) {
	s := NewServer(testTools(t), zerolog.Nop())

	req := mcp.CallToolRequest{}
	req.Params.Name = "read_file"
	req.Params.Arguments = map[string]any{"path": "notes.txt"}
	result, err := s.GetTool("read_file").Handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "Contents of notes.txt:\n\nalpha\nbeta\n", text.Text)
}

func TestHandlerReportsToolErrors(t *testing.T) {
	s := NewServer(testTools(t), zerolog.Nop())

	req := mcp.CallToolRequest{}
	req.Params.Name = "read_file"
	req.Params.Arguments = map[string]any{"path": "absent.txt"}
	result, err := s.GetTool("read_file").Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServeStdioWithSDKClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := NewServer(testTools(t), zerolog.Nop())
	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()
	go func() {
		_ = ServeStdio(ctx, s, serverReader, serverWriter)
	}()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}, nil)
	require.NoError(t, err)
	defer session.Close()

	list, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.Tools, 5)

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "search_code",
		Arguments: map[string]any{"pattern": "beta"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "notes.txt:2:beta")
}
