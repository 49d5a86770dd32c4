package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// maxReadBytes caps how much of a file read_file returns.
const maxReadBytes = 256 * 1024

// Workspace is the file system and working directory the built-in tools
// operate on. Relative paths resolve against Dir.
type Workspace struct {
	FS  afero.Fs
	Dir string
}

// OSWorkspace returns a workspace on the real file system rooted at dir.
func OSWorkspace(dir string) Workspace {
	return Workspace{FS: afero.NewOsFs(), Dir: dir}
}

func (w Workspace) resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "."
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) || w.Dir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(w.Dir, path)
}

type readFileTool struct{ ws Workspace }

func (readFileTool) Name() string        { return "read_file" }
func (readFileTool) Description() string { return "Read the contents of a file" }
func (readFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to read"}
		},
		"required": ["path"]
	}`)
}

func (t readFileTool) Execute(_ context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[struct {
		Path string `json:"path"`
	}](t.Name(), raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Path) == "" {
		return "", toolErr(t.Name(), "missing 'path' argument")
	}
	data, err := afero.ReadFile(t.ws.FS, t.ws.resolve(args.Path))
	if err != nil {
		return "", toolErr(t.Name(), "failed to read file: %v", err)
	}
	body := string(data)
	if len(data) > maxReadBytes {
		body = string(data[:maxReadBytes]) + fmt.Sprintf("\n\n[... truncated %d bytes]", len(data)-maxReadBytes)
	}
	return fmt.Sprintf("Contents of %s:\n\n%s", args.Path, body), nil
}

func (t readFileTool) Preview(raw json.RawMessage) (Descriptor, error) {
	args, err := decodeArgs[struct {
		Path string `json:"path"`
	}](t.Name(), raw)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Summary: "path=" + args.Path}, nil
}

type writeFileArgs struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

type writeFileTool struct{ ws Workspace }

func (writeFileTool) Name() string        { return "write_file" }
func (writeFileTool) Description() string { return "Write contents to a file, creating or replacing it" }
func (writeFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the file to write"},
			"content": {"type": "string", "description": "Contents to write to the file"}
		},
		"required": ["path", "content"]
	}`)
}

func (t writeFileTool) Execute(_ context.Context, raw json.RawMessage) (string, error) {
	args, err := t.args(raw)
	if err != nil {
		return "", err
	}
	path := t.ws.resolve(args.Path)
	if err := t.ws.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", toolErr(t.Name(), "failed to create directory: %v", err)
	}
	if err := afero.WriteFile(t.ws.FS, path, []byte(*args.Content), 0o644); err != nil {
		return "", toolErr(t.Name(), "failed to write file: %v", err)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(*args.Content), args.Path), nil
}

func (t writeFileTool) Preview(raw json.RawMessage) (Descriptor, error) {
	args, err := t.args(raw)
	if err != nil {
		return Descriptor{}, err
	}
	desc := Descriptor{Summary: fmt.Sprintf("path=%s (%d bytes)", args.Path, len(*args.Content))}
	old, readErr := afero.ReadFile(t.ws.FS, t.ws.resolve(args.Path))
	if readErr != nil {
		desc.Preview = "new file"
		return desc, nil
	}
	desc.Warnings = append(desc.Warnings, "overwrites an existing file")
	desc.Preview = LineDiff(string(old), *args.Content, 40)
	return desc, nil
}

func (t writeFileTool) args(raw json.RawMessage) (writeFileArgs, error) {
	args, err := decodeArgs[writeFileArgs](t.Name(), raw)
	if err != nil {
		return args, err
	}
	if strings.TrimSpace(args.Path) == "" {
		return args, toolErr(t.Name(), "missing 'path' argument")
	}
	if args.Content == nil {
		return args, toolErr(t.Name(), "missing 'content' argument")
	}
	return args, nil
}

type listDirectoryTool struct{ ws Workspace }

func (listDirectoryTool) Name() string { return "list_directory" }
func (listDirectoryTool) Description() string {
	return "List the entries of a directory, optionally filtered by a glob"
}
func (listDirectoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the directory to list"},
			"glob": {"type": "string", "description": "Optional pattern such as *.go"}
		},
		"required": ["path"]
	}`)
}

func (t listDirectoryTool) Execute(_ context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[struct {
		Path string `json:"path"`
		Glob string `json:"glob"`
	}](t.Name(), raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Path) == "" {
		return "", toolErr(t.Name(), "missing 'path' argument")
	}
	if args.Glob != "" && !doublestar.ValidatePattern(args.Glob) {
		return "", toolErr(t.Name(), "invalid glob %q", args.Glob)
	}
	entries, err := afero.ReadDir(t.ws.FS, t.ws.resolve(args.Path))
	if err != nil {
		return "", toolErr(t.Name(), "failed to read directory: %v", err)
	}
	var b strings.Builder
	for _, entry := range entries {
		name := entry.Name()
		if args.Glob != "" {
			if ok, _ := doublestar.Match(args.Glob, name); !ok {
				continue
			}
		}
		if entry.IsDir() {
			b.WriteString("📁 " + name + "/\n")
		} else {
			b.WriteString("📄 " + name + "\n")
		}
	}
	return fmt.Sprintf("Contents of %s:\n\n%s", args.Path, b.String()), nil
}
