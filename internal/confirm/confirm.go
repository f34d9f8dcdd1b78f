// Package confirm gates destructive operations behind a two-step
// confirm/cancel prompt. It knows nothing about what is being deleted.
package confirm

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned by Confirm on a prompt that was already cancelled.
var ErrCancelled = errors.New("action cancelled")

// Operation is the wrapped destructive call.
type Operation func(ctx context.Context) error

// Controller opens prompts for one operation.
type Controller struct {
	subject string
	op      Operation
}

// New wraps op. subject is shown to the user, e.g. "Delete session Week 1?".
func New(subject string, op Operation) *Controller {
	return &Controller{subject: subject, op: op}
}

// Subject returns the human-readable description.
func (c *Controller) Subject() string { return c.subject }

// Prompt opens a fresh prompt. Each prompt invokes the operation at most once.
func (c *Controller) Prompt() *Prompt {
	return &Prompt{subject: c.subject, op: c.op}
}

// Prompt is one pending confirmation with exactly two resolutions.
type Prompt struct {
	subject string
	op      Operation

	mu    sync.Mutex
	state state
	once  sync.Once
	err   error
}

type state int

const (
	pending state = iota
	cancelled
	confirmed
)

// Subject returns the human-readable description.
func (p *Prompt) Subject() string { return p.subject }

// Cancel resolves the prompt without side effects. It has no effect on a
// prompt that was already confirmed.
func (p *Prompt) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == pending {
		p.state = cancelled
	}
}

// Confirm runs the operation once. Repeated or concurrent calls wait for and
// return the first call's result.
func (p *Prompt) Confirm(ctx context.Context) error {
	p.mu.Lock()
	if p.state == cancelled {
		p.mu.Unlock()
		return ErrCancelled
	}
	p.state = confirmed
	p.mu.Unlock()

	p.once.Do(func() {
		if p.op != nil {
			p.err = p.op(ctx)
		}
	})
	return p.err
}
