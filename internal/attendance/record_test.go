package attendance

import (
	"errors"
	"testing"
	"time"

	"geoattend/internal/geofence"
)

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); got != (Counts{}) {
		t.Fatalf("Aggregate(nil) = %+v", got)
	}
}

func TestAggregateCountsIndependently(t *testing.T) {
	records := []Record{
		{CheckedIn: true, CheckedOut: false},
		{CheckedIn: true, CheckedOut: true},
		{CheckedIn: false, CheckedOut: false},
	}
	got := Aggregate(records)
	if got.CheckedIn != 2 || got.CheckedOut != 1 {
		t.Fatalf("Aggregate = %+v, want {2 1}", got)
	}
}

func TestCheckInIsIdempotent(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r, err := Record{ID: "r1", UserID: "u1"}.CheckIn(t0)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if r.State() != CheckedIn || r.CheckedInAt == nil || !r.CheckedInAt.Equal(t0) {
		t.Fatalf("unexpected record %+v", r)
	}
	again, err := r.CheckIn(t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("second CheckIn: %v", err)
	}
	if !again.CheckedInAt.Equal(t0) {
		t.Fatalf("second CheckIn changed timestamp: %v", again.CheckedInAt)
	}
}

func TestCheckOutRequiresCheckIn(t *testing.T) {
	_, err := Record{ID: "r1"}.CheckOut(time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestCheckOutTransitions(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r, _ := Record{ID: "r1"}.CheckIn(t0)
	out, err := r.CheckOut(t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if out.State() != CheckedOut || !out.CheckedIn {
		t.Fatalf("unexpected record %+v", out)
	}
	again, err := out.CheckOut(t0.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("second CheckOut: %v", err)
	}
	if !again.CheckedOutAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("second CheckOut changed timestamp")
	}
	if back, _ := out.CheckIn(t0); back.State() != CheckedOut {
		t.Fatalf("CheckIn after checkout should be a no-op, got %s", back.State())
	}
}

func TestValidateFlagsCheckoutWithoutCheckin(t *testing.T) {
	bad := Record{ID: "r1", CheckedOut: true}
	if !errors.Is(bad.Validate(), ErrInvalidStateTransition) {
		t.Fatalf("expected invalid record to be flagged")
	}
	if _, err := bad.CheckIn(time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("CheckIn on invalid record: %v", err)
	}
}

func TestCheckpointAdmit(t *testing.T) {
	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	cp := Checkpoint{
		From:          from,
		To:            from.Add(time.Hour),
		Center:        geofence.Point{Latitude: -6.2, Longitude: 106.8},
		LocationRange: 0.01,
	}
	near := geofence.Point{Latitude: -6.2001, Longitude: 106.8}
	far := geofence.Point{Latitude: -6.21, Longitude: 106.8}

	if err := cp.Admit(near, from.Add(30*time.Minute)); err != nil {
		t.Fatalf("expected admit, got %v", err)
	}
	if err := cp.Admit(near, from.Add(-time.Second)); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("expected ErrOutsideWindow, got %v", err)
	}
	if err := cp.Admit(near, from.Add(2*time.Hour)); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("expected ErrOutsideWindow, got %v", err)
	}
	if err := cp.Admit(far, from.Add(time.Minute)); !errors.Is(err, ErrOutsideGeofence) {
		t.Fatalf("expected ErrOutsideGeofence, got %v", err)
	}
	if err := cp.Admit(near, from); err != nil {
		t.Fatalf("window start should be inclusive: %v", err)
	}
}
