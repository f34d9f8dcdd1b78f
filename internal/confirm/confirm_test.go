package confirm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func counter() (*atomic.Int32, Operation) {
	var n atomic.Int32
	return &n, func(context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestCancelNeverInvokes(t *testing.T) {
	n, op := counter()
	p := New("Delete class Biology?", op).Prompt()
	p.Cancel()
	if err := p.Confirm(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Confirm after Cancel = %v, want ErrCancelled", err)
	}
	if n.Load() != 0 {
		t.Fatalf("operation invoked %d times after cancel", n.Load())
	}
}

func TestConfirmTwiceInvokesOnce(t *testing.T) {
	n, op := counter()
	p := New("Delete session?", op).Prompt()
	if err := p.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := p.Confirm(context.Background()); err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	p.Cancel()
	if n.Load() != 1 {
		t.Fatalf("operation invoked %d times, want 1", n.Load())
	}
}

func TestConcurrentConfirmInvokesOnce(t *testing.T) {
	n, op := counter()
	p := New("Delete session?", op).Prompt()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Confirm(context.Background())
		}()
	}
	wg.Wait()
	if n.Load() != 1 {
		t.Fatalf("operation invoked %d times, want 1", n.Load())
	}
}

func TestNewPromptAllowsAnotherInvocation(t *testing.T) {
	n, op := counter()
	c := New("Delete session?", op)
	_ = c.Prompt().Confirm(context.Background())
	_ = c.Prompt().Confirm(context.Background())
	if n.Load() != 2 {
		t.Fatalf("operation invoked %d times, want 2", n.Load())
	}
}

func TestConfirmReturnsOperationError(t *testing.T) {
	boom := errors.New("boom")
	p := New("x", func(context.Context) error { return boom }).Prompt()
	if err := p.Confirm(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Confirm = %v", err)
	}
	if err := p.Confirm(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("second Confirm = %v", err)
	}
	if p.Subject() != "x" {
		t.Fatalf("subject = %q", p.Subject())
	}
}
