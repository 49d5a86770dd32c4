package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

const (
	maxSearchMatches  = 200
	maxSearchFileSize = 1 << 20
)

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
}

var errSearchLimit = errors.New("search limit reached")

type searchCodeArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Glob    string `json:"glob"`
}

type searchCodeTool struct{ ws Workspace }

func (searchCodeTool) Name() string { return "search_code" }
func (searchCodeTool) Description() string {
	return "Search for a pattern in files under a directory"
}
func (searchCodeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regular expression or literal text to search for"},
			"path": {"type": "string", "description": "Directory to search (defaults to the working directory)"},
			"glob": {"type": "string", "description": "Optional file pattern such as *.go or **/*.ts"}
		},
		"required": ["pattern"]
	}`)
}

func (t searchCodeTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[searchCodeArgs](t.Name(), raw)
	if err != nil {
		return "", err
	}
	if args.Pattern == "" {
		return "", toolErr(t.Name(), "missing 'pattern' argument")
	}
	if args.Glob != "" && !doublestar.ValidatePattern(args.Glob) {
		return "", toolErr(t.Name(), "invalid glob %q", args.Glob)
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(args.Pattern))
	}

	root := t.ws.resolve(args.Path)
	var matches []string
	walkErr := afero.Walk(t.ws.FS, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			if path != root && skippedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > maxSearchFileSize {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if args.Glob != "" && !globMatch(args.Glob, rel) {
			return nil
		}
		data, readErr := afero.ReadFile(t.ws.FS, path)
		if readErr != nil || isBinary(data) {
			return nil
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), maxSearchFileSize)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			if !re.MatchString(text) {
				continue
			}
			matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, line, strings.TrimRight(text, "\r")))
			if len(matches) >= maxSearchMatches {
				return errSearchLimit
			}
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errSearchLimit) {
		if ctx.Err() != nil {
			return "", toolErr(t.Name(), "search cancelled")
		}
		return "", toolErr(t.Name(), "search failed: %v", walkErr)
	}
	if len(matches) == 0 {
		return "No matches found.", nil
	}
	body := strings.Join(matches, "\n")
	if errors.Is(walkErr, errSearchLimit) {
		body += fmt.Sprintf("\n\n[results limited to %d matches]", maxSearchMatches)
	}
	return fmt.Sprintf("Search results for '%s':\n\n%s", args.Pattern, body), nil
}

func (t searchCodeTool) Preview(raw json.RawMessage) (Descriptor, error) {
	args, err := decodeArgs[searchCodeArgs](t.Name(), raw)
	if err != nil {
		return Descriptor{}, err
	}
	summary := "pattern=" + args.Pattern
	if args.Path != "" {
		summary += " path=" + args.Path
	}
	if args.Glob != "" {
		summary += " glob=" + args.Glob
	}
	return Descriptor{Summary: summary}, nil
}

// globMatch matches the pattern against the relative path, and against the
// base name when the pattern has no separator, the way grep --include does.
func globMatch(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, filepath.Base(rel))
		return ok
	}
	return false
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}
