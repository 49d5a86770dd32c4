package session

import "pcli2rig/internal/tools"

// GateState is the state of the tool confirmation gate.
type GateState int

const (
	GateIdle GateState = iota
	GateAwaiting
	GateExecuting
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateAwaiting:
		return "awaiting"
	case GateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// gate holds at most one tool call between proposal and completion.
// deferred keeps user texts that arrived while the call was outstanding;
// they ride along with the follow-up prompt.
type gate struct {
	state    GateState
	call     PendingToolCall
	desc     tools.Descriptor
	deferred []string
}

func (g *gate) propose(call PendingToolCall, desc tools.Descriptor) {
	g.state = GateAwaiting
	g.call = call
	g.desc = desc
}

// confirm moves an awaiting call to executing and returns it.
func (g *gate) confirm() (PendingToolCall, bool) {
	if g.state != GateAwaiting {
		return PendingToolCall{}, false
	}
	g.state = GateExecuting
	return g.call, true
}

// cancel drops an awaiting call. Deferred texts are handed back.
func (g *gate) cancel() (PendingToolCall, []string, bool) {
	if g.state != GateAwaiting {
		return PendingToolCall{}, nil, false
	}
	call, deferred := g.call, g.deferred
	g.reset()
	return call, deferred, true
}

// finish ends an executing call. Deferred texts are handed back.
func (g *gate) finish() (PendingToolCall, []string, bool) {
	if g.state != GateExecuting {
		return PendingToolCall{}, nil, false
	}
	call, deferred := g.call, g.deferred
	g.reset()
	return call, deferred, true
}

func (g *gate) hold(text string) {
	g.deferred = append(g.deferred, text)
}

func (g *gate) reset() {
	*g = gate{}
}

func (g *gate) pending() *Confirmation {
	if g.state != GateAwaiting {
		return nil
	}
	return &Confirmation{Call: g.call, Descriptor: g.desc}
}
