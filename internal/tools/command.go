package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout bounds a single run_command invocation.
	DefaultCommandTimeout = 2 * time.Minute
	maxCommandOutput      = 64 * 1024
)

type runCommandArgs struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd"`
}

type runCommandTool struct {
	ws      Workspace
	shell   string
	timeout time.Duration
}

func (runCommandTool) Name() string        { return "run_command" }
func (runCommandTool) Description() string { return "Execute a shell command and return its output" }
func (runCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to execute"},
			"cwd": {"type": "string", "description": "Working directory (optional)"}
		},
		"required": ["command"]
	}`)
}

func (t runCommandTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := t.args(raw)
	if err != nil {
		return "", err
	}
	timeout := t.timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := t.shell
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", args.Command)
	cmd.Dir = t.ws.resolve(args.Cwd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", toolErr(t.Name(), "command timed out after %s", timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return "", toolErr(t.Name(), "command cancelled")
		case errors.As(runErr, &exitErr):
			code = exitErr.ExitCode()
		default:
			return "", toolErr(t.Name(), "failed to execute command: %v", runErr)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n\n", args.Command)
	if stdout.Len() > 0 {
		b.WriteString("STDOUT:\n")
		b.WriteString(clip(stdout.String(), maxCommandOutput))
		b.WriteString("\n")
	}
	if stderr.Len() > 0 {
		b.WriteString("STDERR:\n")
		b.WriteString(clip(stderr.String(), maxCommandOutput))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Exit code: %d", code)
	return b.String(), nil
}

func (t runCommandTool) Preview(raw json.RawMessage) (Descriptor, error) {
	args, err := t.args(raw)
	if err != nil {
		return Descriptor{}, err
	}
	summary := "command=" + args.Command
	if args.Cwd != "" {
		summary += " cwd=" + args.Cwd
	}
	desc := Descriptor{Summary: summary}
	analysis := AnalyzeCommand(args.Command)
	if analysis.ParseError != nil {
		desc.Warnings = append(desc.Warnings, "could not parse command: "+analysis.ParseError.Error())
	}
	if len(analysis.Programs) > 0 {
		desc.Preview = "programs: " + strings.Join(analysis.Programs, ", ")
	}
	for _, name := range analysis.Dangerous {
		desc.Warnings = append(desc.Warnings, "destructive command: "+name)
	}
	return desc, nil
}

func (t runCommandTool) args(raw json.RawMessage) (runCommandArgs, error) {
	args, err := decodeArgs[runCommandArgs](t.Name(), raw)
	if err != nil {
		return args, err
	}
	if strings.TrimSpace(args.Command) == "" {
		return args, toolErr(t.Name(), "missing 'command' argument")
	}
	return args, nil
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("\n[... truncated %d bytes]", len(s)-limit)
}
