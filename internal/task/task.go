// Package task runs one model completion request off the UI goroutine.
package task

import (
	"context"
	"errors"
	"time"

	"pcli2rig/internal/provider"
)

// DefaultTimeout is the ceiling for a single request.
const DefaultTimeout = 10 * time.Minute

// Token is the cancellation handle for one request. Cancel is safe to call
// more than once and from any goroutine.
type Token struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken returns a token derived from parent.
func NewToken(parent context.Context, id uint64) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Token{id: id, ctx: ctx, cancel: cancel}
}

// ID identifies the request the token belongs to.
func (t *Token) ID() uint64 { return t.id }

// Cancel signals the request to stop.
func (t *Token) Cancel() { t.cancel() }

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} { return t.ctx.Done() }

// Cancelled reports whether Cancel was called or the parent ended.
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }

// Context returns the token's context.
func (t *Token) Context() context.Context { return t.ctx }

// Response is the single message a request sends back.
type Response struct {
	ID         uint64
	Completion provider.Completion
	Err        error
	Elapsed    time.Duration
}

type outcome struct {
	completion provider.Completion
	err        error
}

// Run performs one completion attempt and sends exactly one Response on out.
// Completion, the timeout and cancellation of tok race; whichever resolves
// first decides the response and the others are abandoned. The provider call
// is cancelled on return but may finish some work afterwards.
func Run(tok *Token, p provider.Provider, req provider.Request, timeout time.Duration, out chan<- Response) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()
	ctx, cancel := context.WithCancel(tok.Context())
	defer cancel()

	result := make(chan outcome, 1)
	go func() {
		completion, err := p.Complete(ctx, req)
		result <- outcome{completion: completion, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	resp := Response{ID: tok.ID()}
	select {
	case <-tok.Done():
		resp.Err = ErrCancelled
	case <-timer.C:
		resp.Err = &TimeoutError{After: timeout}
	case o := <-result:
		switch {
		case o.err == nil:
			resp.Completion = o.completion
		case tok.Cancelled():
			resp.Err = ErrCancelled
		case errors.Is(o.err, context.DeadlineExceeded):
			resp.Err = &TimeoutError{After: timeout}
		default:
			resp.Err = &TransportError{Err: o.err}
		}
	}
	resp.Elapsed = time.Since(start)
	out <- resp
}
