package queue

import (
	"context"
	"testing"
	"time"

	"geoattend/internal/store"
)

func TestEncodeDecode(t *testing.T) {
	evt := store.Event{ID: "e1", Type: CheckedIn, TimelineID: "s1", UserID: "u1", OccurredAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	msg, err := Encode(evt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.Type != CheckedIn {
		t.Fatalf("type = %q", msg.Type)
	}
	got, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != "e1" || got.TimelineID != "s1" || !got.OccurredAt.Equal(evt.OccurredAt) {
		t.Fatalf("unexpected event %+v", got)
	}

	if _, err := Encode(store.Event{}); err == nil {
		t.Fatalf("expected error for untyped event")
	}
	if _, err := Decode(Message{Type: "x", Body: []byte("{")}); err == nil {
		t.Fatalf("expected error for bad body")
	}
}

func TestInMemoryDelivers(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	msg, _ := Encode(store.Event{Type: ClassDeleted, ClassID: "c1"})
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != ClassDeleted {
			t.Fatalf("type = %q", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	_ = q.Publish(ctx, Message{Type: "a"})
	cancel()
	if err := q.Publish(ctx, Message{Type: "b"}); err == nil {
		t.Fatalf("expected context error on full queue")
	}
}
