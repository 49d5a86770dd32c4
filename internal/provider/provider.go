// Package provider talks to language-model backends. Two backends exist:
// Ollama's native /api/chat endpoint and any OpenAI-compatible endpoint
// (including Ollama's /v1) through eino.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pcli2rig/internal/conversation"
)

// ToolSpec describes a tool offered to the model. Parameters is a JSON
// Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a tool invocation proposed by the model. Arguments is a JSON
// object encoded as a string.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Completion is the result of one model call.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// Request carries everything a provider needs for one call. Snapshot is an
// immutable copy of the conversation.
type Request struct {
	Model       string
	Preamble    string
	Snapshot    conversation.Snapshot
	Tools       []ToolSpec
	Temperature float64
}

// Provider completes a conversation. Implementations must honour ctx
// cancellation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// chatMessage is the provider-neutral working copy of one message.
type chatMessage struct {
	Role    string
	Content string
}

// buildMessages reconstructs the model-facing message list from the snapshot.
// System notices are local to the session and are dropped. Tool results are
// sent as user turns because the history does not keep the assistant's
// original tool_calls message they would have to answer.
func buildMessages(req Request) []chatMessage {
	out := make([]chatMessage, 0, req.Snapshot.Len()+1)
	if strings.TrimSpace(req.Preamble) != "" {
		out = append(out, chatMessage{Role: "system", Content: req.Preamble})
	}
	req.Snapshot.Each(func(m conversation.Message) {
		switch m.Role {
		case conversation.RoleUser:
			out = append(out, chatMessage{Role: "user", Content: m.Content})
		case conversation.RoleAssistant:
			out = append(out, chatMessage{Role: "assistant", Content: m.Content})
		case conversation.RoleToolResult:
			label := "Tool Result"
			if m.ToolName != "" {
				label = fmt.Sprintf("Tool Result (%s)", m.ToolName)
			}
			out = append(out, chatMessage{Role: "user", Content: label + ": " + m.Content})
		}
	})
	return out
}

func ensureCallID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return "call_" + uuid.NewString()
}
