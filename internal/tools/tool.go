// Package tools implements the built-in tools the model may call and the
// registry that also routes calls to remote MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a callable capability offered to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON Schema object for the arguments.
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Previewer is implemented by tools that can describe a call before it runs.
type Previewer interface {
	Preview(args json.RawMessage) (Descriptor, error)
}

// Descriptor summarises a pending call for the confirmation prompt.
type Descriptor struct {
	// Summary is a one-line rendering of the arguments.
	Summary string
	// Preview is optional multi-line detail such as a diff.
	Preview string
	// Warnings flag risky aspects of the call.
	Warnings []string
}

// ToolError is returned when a tool fails.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error { return e.Err }

func toolErr(name string, format string, args ...any) error {
	return &ToolError{Tool: name, Err: fmt.Errorf(format, args...)}
}

func decodeArgs[T any](name string, raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, toolErr(name, "failed to parse tool arguments: %v", err)
	}
	return out, nil
}
