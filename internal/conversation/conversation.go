// Package conversation holds the ordered message history of a chat session.
package conversation

import "time"

// Role identifies who produced a message.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
	RoleSystem
	RoleToolResult
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	case RoleToolResult:
		return "tool"
	default:
		return "unknown"
	}
}

// Message is one entry of the history. Position is the insertion index and
// never changes. ToolName and CallID are set on tool results.
type Message struct {
	Role     Role
	Content  string
	Position int
	Time     time.Time
	ToolName string
	CallID   string
}

// History is an append-only message sequence. It is owned by the session and
// must not be shared with request goroutines; hand them a Snapshot instead.
type History struct {
	messages []Message
	now      func() time.Time
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{now: time.Now}
}

// Append adds a message and returns it with its position filled in.
func (h *History) Append(role Role, content string) Message {
	return h.add(Message{Role: role, Content: content})
}

// AppendToolResult adds a tool result message.
func (h *History) AppendToolResult(toolName, callID, content string) Message {
	return h.add(Message{Role: RoleToolResult, Content: content, ToolName: toolName, CallID: callID})
}

func (h *History) add(msg Message) Message {
	msg.Position = len(h.messages)
	msg.Time = h.now()
	h.messages = append(h.messages, msg)
	return msg
}

// Clear removes every message.
func (h *History) Clear() {
	h.messages = nil
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Last returns the newest message.
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Snapshot returns an immutable copy of the current history.
func (h *History) Snapshot() Snapshot {
	msgs := make([]Message, len(h.messages))
	copy(msgs, h.messages)
	return Snapshot{messages: msgs}
}

// Snapshot is a read-only copy of a history taken at one point in time.
// Appending to the History afterwards does not affect it.
type Snapshot struct {
	messages []Message
}

// NewSnapshot builds a snapshot from messages, copying them.
func NewSnapshot(messages ...Message) Snapshot {
	msgs := make([]Message, len(messages))
	copy(msgs, messages)
	for i := range msgs {
		msgs[i].Position = i
	}
	return Snapshot{messages: msgs}
}

// Len returns the number of messages.
func (s Snapshot) Len() int { return len(s.messages) }

// At returns the i-th message.
func (s Snapshot) At(i int) Message { return s.messages[i] }

// Messages returns a copy of the messages.
func (s Snapshot) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Each calls fn for every message in order.
func (s Snapshot) Each(fn func(Message)) {
	for _, m := range s.messages {
		fn(m)
	}
}

// Count returns how many messages have the given role.
func (s Snapshot) Count(role Role) int {
	n := 0
	for _, m := range s.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
