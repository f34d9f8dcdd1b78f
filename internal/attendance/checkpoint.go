package attendance

import (
	"errors"
	"time"

	"geoattend/internal/geofence"
)

var (
	ErrOutsideWindow   = errors.New("session is not open at this time")
	ErrOutsideGeofence = errors.New("location is outside the session area")
)

// Checkpoint is what a check-in or check-out attempt is verified against.
type Checkpoint struct {
	From          time.Time
	To            time.Time
	Center        geofence.Point
	LocationRange float64
}

// Open reports whether at falls inside [From, To].
func (c Checkpoint) Open(at time.Time) bool {
	return !at.Before(c.From) && !at.After(c.To)
}

// Admit verifies the time window first, then the geofence.
func (c Checkpoint) Admit(point geofence.Point, at time.Time) error {
	if !c.Open(at) {
		return ErrOutsideWindow
	}
	if !geofence.IsWithinGeofence(point, c.Center, c.LocationRange) {
		return ErrOutsideGeofence
	}
	return nil
}
