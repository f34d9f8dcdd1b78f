package timeline

import (
	"fmt"
	"strings"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/geofence"
)

// Session is a time-windowed, geofenced attendance event under one class.
type Session struct {
	ID            string
	ClassID       string
	Description   string
	From          time.Time
	To            time.Time
	LocationRange float64
	Center        geofence.Point
	CreatedAt     time.Time
	Attendances   []attendance.Record
}

// Counts tallies the session's check-ins and check-outs.
func (s Session) Counts() attendance.Counts {
	return attendance.Aggregate(s.Attendances)
}

// Radius is the verification radius in meters.
func (s Session) Radius() float64 {
	return geofence.RadiusMeters(s.LocationRange)
}

// Checkpoint returns what check-in attempts are verified against.
func (s Session) Checkpoint() attendance.Checkpoint {
	return attendance.Checkpoint{
		From:          s.From,
		To:            s.To,
		Center:        s.Center,
		LocationRange: s.LocationRange,
	}
}

// Fields returns the editable part of the session, e.g. to prefill an edit form.
func (s Session) Fields() Fields {
	return Fields{
		Description:   s.Description,
		From:          s.From,
		To:            s.To,
		LocationRange: s.LocationRange,
		Center:        s.Center,
	}
}

// Record returns the attendance record for userID, if any.
func (s Session) Record(userID string) (attendance.Record, bool) {
	for _, r := range s.Attendances {
		if r.UserID == userID {
			return r, true
		}
	}
	return attendance.Record{}, false
}

// Fields are the user-editable session attributes. ClassID is deliberately
// absent: it cannot change after creation.
type Fields struct {
	Description   string
	From          time.Time
	To            time.Time
	LocationRange float64
	Center        geofence.Point
}

// ValidationError reports bad form input. It is always raised before any
// network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the fields a session needs to be meaningful.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if f.From.IsZero() || f.To.IsZero() {
		return &ValidationError{Field: "from/to", Reason: "both times are required"}
	}
	if !f.From.Before(f.To) {
		return &ValidationError{Field: "from/to", Reason: "start must be before end"}
	}
	if !geofence.ValidRange(f.LocationRange) {
		return &ValidationError{Field: "location_range", Reason: "must be greater than zero"}
	}
	if f.Center.Latitude < -90 || f.Center.Latitude > 90 || f.Center.Longitude < -180 || f.Center.Longitude > 180 {
		return &ValidationError{Field: "latitude/longitude", Reason: "out of range"}
	}
	return nil
}

// Draft is the create form. Its reference point defaults to the device
// location and can be moved before submit.
type Draft struct {
	Fields

	device geofence.Point
	clock  func() time.Time
}

// NewDraft starts an empty form centered on the device location.
func NewDraft(device geofence.Point) *Draft {
	d := &Draft{device: device, clock: time.Now}
	d.Reset()
	return d
}

// Recenter moves the session's reference point, e.g. after dragging the map.
func (d *Draft) Recenter(p geofence.Point) {
	d.Center = p
}

// Reset restores the defaults: empty description and range, both times now,
// center on the device location.
func (d *Draft) Reset() {
	now := d.clock()
	d.Fields = Fields{
		From:   now,
		To:     now,
		Center: d.device,
	}
}
