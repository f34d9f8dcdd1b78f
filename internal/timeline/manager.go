package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/classes"
	"geoattend/internal/confirm"
	"geoattend/internal/geofence"
)

// API is the slice of the remote adapter the timeline views need.
type API interface {
	ListTimelines(ctx context.Context, id auth.Identity, classID string) ([]Session, error)
	CreateTimeline(ctx context.Context, id auth.Identity, classID string, f Fields) (Session, error)
	EditTimeline(ctx context.Context, id auth.Identity, sessionID string, f Fields) (Session, error)
	DeleteTimeline(ctx context.Context, id auth.Identity, sessionID string) error
	CheckIn(ctx context.Context, id auth.Identity, sessionID string, at geofence.Point) (attendance.Record, error)
	CheckOut(ctx context.Context, id auth.Identity, sessionID string, at geofence.Point) (attendance.Record, error)
}

// Board is the member view of a class's sessions: read and attend, never
// edit.
type Board struct {
	api     API
	id      auth.Identity
	classID string
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions []Session
	inflight int
}

// NewBoard binds a member view to one class and caller.
func NewBoard(api API, classID string, id auth.Identity, log zerolog.Logger) *Board {
	return &Board{
		api:     api,
		id:      id,
		classID: classID,
		log:     log.With().Str("component", "timeline").Str("class", classID).Logger(),
		now:     time.Now,
	}
}

// ClassID is the class this view is scoped to.
func (b *Board) ClassID() string { return b.classID }

// List fetches the class's sessions in server order. A failure clears the
// list, is logged and returned; callers may show it or fall back to the
// empty state.
func (b *Board) List(ctx context.Context) ([]Session, error) {
	b.begin()
	list, err := b.api.ListTimelines(ctx, b.id, b.classID)
	b.end()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.log.Warn().Err(err).Str("op", "list").Msg("session list unavailable")
		b.sessions = nil
		return nil, err
	}
	for i := range list {
		list[i].ClassID = b.classID
	}
	b.sessions = list
	return append([]Session(nil), list...), nil
}

// Sessions returns a copy of the in-memory list.
func (b *Board) Sessions() []Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Session(nil), b.sessions...)
}

// Session looks up a listed session by id.
func (b *Board) Session(sessionID string) (Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(sessionID); i >= 0 {
		return b.sessions[i], true
	}
	return Session{}, false
}

// Loading reports whether a remote call is in flight.
func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight > 0
}

// CheckIn records the caller's presence at point. When the session is
// listed, the window and geofence are checked locally before dispatch; the
// server checks them again. A listed record that is already checked in is
// returned as is.
func (b *Board) CheckIn(ctx context.Context, sessionID string, point geofence.Point) (attendance.Record, error) {
	return b.attend(ctx, sessionID, point, attendance.CheckedIn, b.api.CheckIn)
}

// CheckOut closes the caller's attendance at point.
func (b *Board) CheckOut(ctx context.Context, sessionID string, point geofence.Point) (attendance.Record, error) {
	if s, ok := b.Session(sessionID); ok {
		rec, _ := s.Record(b.id.UserID)
		if rec.State() == attendance.NotPresent {
			return rec, attendance.ErrInvalidStateTransition
		}
	}
	return b.attend(ctx, sessionID, point, attendance.CheckedOut, b.api.CheckOut)
}

type attendFunc func(ctx context.Context, id auth.Identity, sessionID string, at geofence.Point) (attendance.Record, error)

// attend dispatches call unless the listed record has already reached target.
func (b *Board) attend(ctx context.Context, sessionID string, point geofence.Point, target attendance.State, call attendFunc) (attendance.Record, error) {
	if s, ok := b.Session(sessionID); ok {
		if rec, found := s.Record(b.id.UserID); found && rec.State() >= target {
			return rec, nil
		}
		if err := s.Checkpoint().Admit(point, b.now()); err != nil {
			return attendance.Record{}, err
		}
	}

	b.begin()
	rec, err := call(ctx, b.id, sessionID, point)
	b.end()
	if err != nil {
		return attendance.Record{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(sessionID); i >= 0 {
		b.sessions[i].Attendances = upsertRecord(b.sessions[i].Attendances, rec)
	}
	return rec, nil
}

func (b *Board) begin() {
	b.mu.Lock()
	b.inflight++
	b.mu.Unlock()
}

func (b *Board) end() {
	b.mu.Lock()
	b.inflight--
	b.mu.Unlock()
}

// index must be called with mu held.
func (b *Board) index(sessionID string) int {
	for i, s := range b.sessions {
		if s.ID == sessionID {
			return i
		}
	}
	return -1
}

// Manager is the owner view. It exists only for the class owner and checks
// ownership again on every mutation.
type Manager struct {
	*Board
	class classes.Class
}

// NewManager returns auth.ErrNotOwner unless id owns class.
func NewManager(api API, class classes.Class, id auth.Identity, log zerolog.Logger) (*Manager, error) {
	if !id.Owns(class.OwnerID) {
		return nil, auth.ErrNotOwner
	}
	return &Manager{Board: NewBoard(api, class.ID, id, log), class: class}, nil
}

// Create validates d, creates the session remotely, appends it to the list
// and resets d. Invalid input never reaches the network.
func (m *Manager) Create(ctx context.Context, d *Draft) (Session, error) {
	if err := m.authorize(); err != nil {
		return Session{}, err
	}
	if err := d.Validate(); err != nil {
		return Session{}, err
	}

	m.begin()
	s, err := m.api.CreateTimeline(ctx, m.id, m.classID, d.Fields)
	m.end()
	if err != nil {
		return Session{}, err
	}
	s.ClassID = m.classID

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	d.Reset()
	return s, nil
}

// Update validates f, edits the session remotely and replaces the listed
// entry in place.
func (m *Manager) Update(ctx context.Context, sessionID string, f Fields) (Session, error) {
	if err := m.authorize(); err != nil {
		return Session{}, err
	}
	if err := f.Validate(); err != nil {
		return Session{}, err
	}

	m.begin()
	s, err := m.api.EditTimeline(ctx, m.id, sessionID, f)
	m.end()
	if err != nil {
		return Session{}, err
	}
	s.ClassID = m.classID

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(sessionID); i >= 0 {
		if s.Attendances == nil {
			s.Attendances = m.sessions[i].Attendances
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = m.sessions[i].CreatedAt
		}
		m.sessions[i] = s
	}
	return s, nil
}

// Delete removes the session remotely, then from the list. A failed delete
// leaves the list untouched.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.authorize(); err != nil {
		return err
	}

	m.begin()
	err := m.api.DeleteTimeline(ctx, m.id, sessionID)
	m.end()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sessions[:0:0]
	for _, s := range m.sessions {
		if s.ID != sessionID {
			out = append(out, s)
		}
	}
	m.sessions = out
	return nil
}

// ConfirmDelete opens a confirmation prompt wrapping Delete.
func (m *Manager) ConfirmDelete(sessionID string) *confirm.Prompt {
	subject := "Are you sure you want to delete this session?"
	if s, ok := m.Session(sessionID); ok {
		subject = fmt.Sprintf("Are you sure you want to delete %q?", s.Description)
	}
	return confirm.New(subject, func(ctx context.Context) error {
		return m.Delete(ctx, sessionID)
	}).Prompt()
}

// Class returns the class this manager owns.
func (m *Manager) Class() classes.Class { return m.class }

// authorize repeats the NewManager ownership check before each mutation. It
// can only fail if the manager's identity or class is replaced after
// construction.
func (m *Manager) authorize() error {
	if !m.id.Owns(m.class.OwnerID) {
		return auth.ErrNotOwner
	}
	return nil
}

func upsertRecord(list []attendance.Record, rec attendance.Record) []attendance.Record {
	for i, r := range list {
		if (rec.ID != "" && r.ID == rec.ID) || r.UserID == rec.UserID {
			out := append([]attendance.Record(nil), list...)
			out[i] = rec
			return out
		}
	}
	return append(append([]attendance.Record(nil), list...), rec)
}
