package attendance

import (
	"errors"
	"time"
)

// ErrInvalidStateTransition is returned when a record would skip a state,
// e.g. checking out without ever checking in.
var ErrInvalidStateTransition = errors.New("invalid attendance state transition")

// State is the position of a record in NotPresent -> CheckedIn -> CheckedOut.
type State int

const (
	NotPresent State = iota
	CheckedIn
	CheckedOut
)

func (s State) String() string {
	switch s {
	case CheckedIn:
		return "checked_in"
	case CheckedOut:
		return "checked_out"
	default:
		return "not_present"
	}
}

// Record is one member's check-in/out state for one session.
type Record struct {
	ID           string
	UserID       string
	CheckedIn    bool
	CheckedOut   bool
	CheckedInAt  *time.Time
	CheckedOutAt *time.Time
}

// State derives the record's state from its flags.
func (r Record) State() State {
	switch {
	case r.CheckedOut:
		return CheckedOut
	case r.CheckedIn:
		return CheckedIn
	default:
		return NotPresent
	}
}

// Validate flags records that claim a checkout without a checkin.
func (r Record) Validate() error {
	if r.CheckedOut && !r.CheckedIn {
		return ErrInvalidStateTransition
	}
	return nil
}

// CheckIn moves a record into CheckedIn. A record that already checked in is
// returned unchanged.
func (r Record) CheckIn(at time.Time) (Record, error) {
	if err := r.Validate(); err != nil {
		return r, err
	}
	if r.CheckedIn {
		return r, nil
	}
	at = at.UTC()
	r.CheckedIn = true
	r.CheckedInAt = &at
	return r, nil
}

// CheckOut moves a checked-in record into CheckedOut. Checking out twice is a
// no-op; checking out without a checkin fails.
func (r Record) CheckOut(at time.Time) (Record, error) {
	if err := r.Validate(); err != nil {
		return r, err
	}
	switch r.State() {
	case NotPresent:
		return r, ErrInvalidStateTransition
	case CheckedOut:
		return r, nil
	}
	at = at.UTC()
	r.CheckedOut = true
	r.CheckedOutAt = &at
	return r, nil
}

// Counts holds independent check-in and check-out tallies.
type Counts struct {
	CheckedIn  int `json:"checkedInCount"`
	CheckedOut int `json:"checkedOutCount"`
}

// Aggregate counts records by flag. A completed attendance lands in both
// buckets.
func Aggregate(records []Record) Counts {
	var c Counts
	for _, r := range records {
		if r.CheckedIn {
			c.CheckedIn++
		}
		if r.CheckedOut {
			c.CheckedOut++
		}
	}
	return c
}
