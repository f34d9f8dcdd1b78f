package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/classes"
	"geoattend/internal/geofence"
	"geoattend/internal/timeline"
)

func seed(t *testing.T, m *Memory) (classes.Class, timeline.Session) {
	t.Helper()
	ctx := context.Background()
	c, err := m.CreateClass(ctx, classes.Class{Name: "Biology", OwnerID: "owner"})
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	from := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s, err := m.CreateTimeline(ctx, timeline.Session{
		ClassID:       c.ID,
		Description:   "Week 1",
		From:          from,
		To:            from.Add(time.Hour),
		LocationRange: 0.01,
		Center:        geofence.Point{Latitude: 1, Longitude: 2},
	})
	if err != nil {
		t.Fatalf("CreateTimeline: %v", err)
	}
	return c, s
}

func TestMemoryOwnedClassesNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := map[string]time.Duration{"old": 0, "new": 2 * time.Hour, "mid": time.Hour}
	for name, off := range offsets {
		_, _ = m.CreateClass(ctx, classes.Class{ID: name, OwnerID: "u", CreatedAt: base.Add(off)})
	}
	_, _ = m.CreateClass(ctx, classes.Class{ID: "other", OwnerID: "x", CreatedAt: base})

	list, err := m.ListOwnedClasses(ctx, "u")
	if err != nil {
		t.Fatalf("ListOwnedClasses: %v", err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[1].ID != "mid" || list[2].ID != "old" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestMemoryMembership(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c, _ := seed(t, m)

	if err := m.AddMember(ctx, "missing", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.AddMember(ctx, c.ID, "s1"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := m.AddMember(ctx, c.ID, "s1"); err != nil {
		t.Fatalf("second AddMember: %v", err)
	}
	ok, _ := m.IsMember(ctx, c.ID, "s1")
	if !ok {
		t.Fatalf("expected s1 to be a member")
	}
	list, _ := m.ListMemberClasses(ctx, "s1")
	if len(list) != 1 || list[0].ID != c.ID {
		t.Fatalf("unexpected member classes %+v", list)
	}
}

func TestMemoryTimelinesKeepCreationOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c, first := seed(t, m)
	second := first
	second.ID = ""
	second.Description = "Week 2"
	second, err := m.CreateTimeline(ctx, second)
	if err != nil {
		t.Fatalf("CreateTimeline: %v", err)
	}

	list, _ := m.ListTimelines(ctx, c.ID)
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("unexpected order %+v", list)
	}

	if _, err := m.CreateTimeline(ctx, timeline.Session{ClassID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown class, got %v", err)
	}
}

func TestMemoryUpdateKeepsRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, s := seed(t, m)
	rec, _ := attendance.Record{UserID: "s1"}.CheckIn(s.From)
	if _, err := m.SaveRecord(ctx, s.ID, rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	f := s.Fields()
	f.Description = "Renamed"
	got, err := m.UpdateTimeline(ctx, s.ID, f)
	if err != nil {
		t.Fatalf("UpdateTimeline: %v", err)
	}
	if got.Description != "Renamed" || len(got.Attendances) != 1 || got.ClassID != s.ClassID {
		t.Fatalf("unexpected session %+v", got)
	}
	if _, err := m.UpdateTimeline(ctx, "missing", f); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySaveRecordUpserts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, s := seed(t, m)

	in, _ := attendance.Record{UserID: "s1"}.CheckIn(s.From)
	saved, err := m.SaveRecord(ctx, s.ID, in)
	if err != nil || saved.ID == "" {
		t.Fatalf("SaveRecord: %+v %v", saved, err)
	}
	out, _ := saved.CheckOut(s.From.Add(time.Minute))
	again, err := m.SaveRecord(ctx, s.ID, out)
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if again.ID != saved.ID || !again.CheckedOut {
		t.Fatalf("record not upserted: %+v", again)
	}

	got, _ := m.GetTimeline(ctx, s.ID)
	if len(got.Attendances) != 1 {
		t.Fatalf("expected one record, got %d", len(got.Attendances))
	}
	if c := got.Counts(); c.CheckedIn != 1 || c.CheckedOut != 1 {
		t.Fatalf("counts = %+v", c)
	}

	bad := attendance.Record{UserID: "s2", CheckedOut: true}
	if _, err := m.SaveRecord(ctx, s.ID, bad); !errors.Is(err, attendance.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestMemorySaveRecordNeverRegresses(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, s := seed(t, m)

	in, _ := attendance.Record{UserID: "s1"}.CheckIn(s.From)
	out, _ := in.CheckOut(s.From.Add(time.Minute))
	if _, err := m.SaveRecord(ctx, s.ID, out); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	got, err := m.SaveRecord(ctx, s.ID, in)
	if err != nil {
		t.Fatalf("stale SaveRecord: %v", err)
	}
	if !got.CheckedOut || got.CheckedOutAt == nil {
		t.Fatalf("stale check-in reverted the checkout: %+v", got)
	}
	tl, _ := m.GetTimeline(ctx, s.ID)
	if r, _ := tl.Record("s1"); r.State() != attendance.CheckedOut {
		t.Fatalf("stored state = %v", r.State())
	}
}

func TestMemoryDeleteClassCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c, s := seed(t, m)
	_ = m.AddMember(ctx, c.ID, "s1")

	if err := m.DeleteClass(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}
	if _, err := m.GetTimeline(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("timeline survived class delete: %v", err)
	}
	if list, _ := m.ListMemberClasses(ctx, "s1"); len(list) != 0 {
		t.Fatalf("membership survived class delete: %+v", list)
	}
	if err := m.DeleteClass(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryEventsDeduplicateAndNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.AppendEvent(ctx, Event{ID: "e1", Type: "a"})
	_ = m.AppendEvent(ctx, Event{ID: "e2", Type: "b"})
	_ = m.AppendEvent(ctx, Event{ID: "e1", Type: "a"})

	list, _ := m.ListEvents(ctx, 10)
	if len(list) != 2 || list[0].ID != "e2" || list[1].ID != "e1" {
		t.Fatalf("unexpected events %+v", list)
	}
	if list, _ := m.ListEvents(ctx, 1); len(list) != 1 {
		t.Fatalf("limit ignored: %+v", list)
	}
}
