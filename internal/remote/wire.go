package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/classes"
	"geoattend/internal/geofence"
	"geoattend/internal/timeline"
)

// Wire documents shared by the client and the reference backend. Field
// names follow the backend the mobile app talks to.

// ClassDoc is a class as listed by /user/get-class-owner and
// /user/get-students-class.
type ClassDoc struct {
	ID        string `json:"_id"`
	Name      string `json:"className"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
	Profile   string `json:"classProfile,omitempty"`
	Date      string `json:"date,omitempty"`
}

// AttendanceDoc is one member's record inside a timeline.
type AttendanceDoc struct {
	ID           string `json:"_id"`
	UserID       string `json:"userId"`
	CheckedIn    bool   `json:"checkedIn"`
	CheckedOut   bool   `json:"checkedOut"`
	CheckedInAt  string `json:"checkedInAt,omitempty"`
	CheckedOutAt string `json:"checkedOutAt,omitempty"`
}

// TimelineDoc is a session.
type TimelineDoc struct {
	ID            string          `json:"_id"`
	ClassID       string          `json:"classId,omitempty"`
	Description   string          `json:"description"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	LocationRange Range           `json:"location_range"`
	Latitude      float64         `json:"latitude"`
	Longitude     float64         `json:"longitude"`
	Created       string          `json:"created,omitempty"`
	Attendances   []AttendanceDoc `json:"attendances"`
}

// TimelineList is the /attendance/get-subclass envelope.
type TimelineList struct {
	Attendance []TimelineDoc `json:"attendance"`
}

// TimelineBody is the create/edit request.
type TimelineBody struct {
	UserID        string  `json:"userId"`
	Description   string  `json:"description"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	LocationRange Range   `json:"location_range"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// OwnerBody carries the acting user on deletes.
type OwnerBody struct {
	UserID string `json:"userId"`
}

// PresenceBody is a check-in/out attempt.
type PresenceBody struct {
	UserID    string  `json:"userId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MessageBody is the error (and delete acknowledgement) envelope.
type MessageBody struct {
	Message string `json:"message"`
}

// Range is a location range. The mobile client posts it from a text input,
// so both JSON numbers and numeric strings are accepted.
type Range float64

func (r *Range) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("location_range %q is not a number", s)
		}
		*r = Range(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Range(v)
	return nil
}

// FormatTime renders a timestamp the way the backend stores it.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(entity, field, v string, required bool) (time.Time, error) {
	if v == "" {
		if required {
			return time.Time{}, &DecodeError{Entity: entity, Reason: field + " is missing"}
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, &DecodeError{Entity: entity, Reason: field + " is not ISO-8601", Err: err}
	}
	return t, nil
}

// NewClassDoc encodes a class.
func NewClassDoc(c classes.Class) ClassDoc {
	return ClassDoc{
		ID:        c.ID,
		Name:      c.Name,
		OwnerID:   c.OwnerID,
		OwnerName: c.OwnerName,
		Profile:   c.ProfileImageRef,
		Date:      FormatTime(c.CreatedAt),
	}
}

// Class validates and decodes the document.
func (d ClassDoc) Class() (classes.Class, error) {
	if d.ID == "" {
		return classes.Class{}, &DecodeError{Entity: "class", Reason: "_id is missing"}
	}
	created, err := parseTime("class", "date", d.Date, false)
	if err != nil {
		return classes.Class{}, err
	}
	return classes.Class{
		ID:              d.ID,
		Name:            d.Name,
		OwnerID:         d.OwnerID,
		OwnerName:       d.OwnerName,
		ProfileImageRef: d.Profile,
		CreatedAt:       created,
	}, nil
}

// NewAttendanceDoc encodes a record.
func NewAttendanceDoc(r attendance.Record) AttendanceDoc {
	doc := AttendanceDoc{ID: r.ID, UserID: r.UserID, CheckedIn: r.CheckedIn, CheckedOut: r.CheckedOut}
	if r.CheckedInAt != nil {
		doc.CheckedInAt = FormatTime(*r.CheckedInAt)
	}
	if r.CheckedOutAt != nil {
		doc.CheckedOutAt = FormatTime(*r.CheckedOutAt)
	}
	return doc
}

// Record validates and decodes the document, rejecting checkout without
// checkin.
func (d AttendanceDoc) Record() (attendance.Record, error) {
	if d.UserID == "" {
		return attendance.Record{}, &DecodeError{Entity: "attendance", Reason: "userId is missing"}
	}
	r := attendance.Record{ID: d.ID, UserID: d.UserID, CheckedIn: d.CheckedIn, CheckedOut: d.CheckedOut}
	if err := r.Validate(); err != nil {
		return attendance.Record{}, &DecodeError{Entity: "attendance", Reason: "checked out without checking in", Err: err}
	}
	if in, err := parseTime("attendance", "checkedInAt", d.CheckedInAt, false); err != nil {
		return attendance.Record{}, err
	} else if !in.IsZero() {
		r.CheckedInAt = &in
	}
	if out, err := parseTime("attendance", "checkedOutAt", d.CheckedOutAt, false); err != nil {
		return attendance.Record{}, err
	} else if !out.IsZero() {
		r.CheckedOutAt = &out
	}
	return r, nil
}

// NewTimelineDoc encodes a session.
func NewTimelineDoc(s timeline.Session) TimelineDoc {
	doc := TimelineDoc{
		ID:            s.ID,
		ClassID:       s.ClassID,
		Description:   s.Description,
		From:          FormatTime(s.From),
		To:            FormatTime(s.To),
		LocationRange: Range(s.LocationRange),
		Latitude:      s.Center.Latitude,
		Longitude:     s.Center.Longitude,
		Created:       FormatTime(s.CreatedAt),
		Attendances:   make([]AttendanceDoc, 0, len(s.Attendances)),
	}
	for _, r := range s.Attendances {
		doc.Attendances = append(doc.Attendances, NewAttendanceDoc(r))
	}
	return doc
}

// Session validates and decodes the document.
func (d TimelineDoc) Session() (timeline.Session, error) {
	if d.ID == "" {
		return timeline.Session{}, &DecodeError{Entity: "timeline", Reason: "_id is missing"}
	}
	from, err := parseTime("timeline", "from", d.From, true)
	if err != nil {
		return timeline.Session{}, err
	}
	to, err := parseTime("timeline", "to", d.To, true)
	if err != nil {
		return timeline.Session{}, err
	}
	created, err := parseTime("timeline", "created", d.Created, false)
	if err != nil {
		return timeline.Session{}, err
	}
	s := timeline.Session{
		ID:            d.ID,
		ClassID:       d.ClassID,
		Description:   d.Description,
		From:          from,
		To:            to,
		LocationRange: float64(d.LocationRange),
		Center:        geofence.Point{Latitude: d.Latitude, Longitude: d.Longitude},
		CreatedAt:     created,
	}
	for _, ad := range d.Attendances {
		r, err := ad.Record()
		if err != nil {
			return timeline.Session{}, err
		}
		s.Attendances = append(s.Attendances, r)
	}
	return s, nil
}

// NewTimelineBody encodes a create/edit request.
func NewTimelineBody(userID string, f timeline.Fields) TimelineBody {
	return TimelineBody{
		UserID:        userID,
		Description:   f.Description,
		From:          FormatTime(f.From),
		To:            FormatTime(f.To),
		LocationRange: Range(f.LocationRange),
		Latitude:      f.Center.Latitude,
		Longitude:     f.Center.Longitude,
	}
}

// Fields decodes a create/edit request. Validation is left to the caller.
func (b TimelineBody) Fields() (timeline.Fields, error) {
	from, err := parseTime("timeline", "from", b.From, true)
	if err != nil {
		return timeline.Fields{}, err
	}
	to, err := parseTime("timeline", "to", b.To, true)
	if err != nil {
		return timeline.Fields{}, err
	}
	return timeline.Fields{
		Description:   b.Description,
		From:          from,
		To:            to,
		LocationRange: float64(b.LocationRange),
		Center:        geofence.Point{Latitude: b.Latitude, Longitude: b.Longitude},
	}, nil
}
