package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/attendance"
	"geoattend/internal/classes"
	"geoattend/internal/timeline"
)

var _ Repository = (*Postgres)(nil)

// Postgres persists the backend's data through database/sql and pgx.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const classColumns = `c.id, c.name, c.owner_id, c.owner_name, c.profile, c.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(row scanner) (classes.Class, error) {
	var c classes.Class
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.OwnerName, &c.ProfileImageRef, &c.CreatedAt)
	return c, err
}

// CreateClass inserts a class, assigning an id when missing.
func (r *Postgres) CreateClass(ctx context.Context, c classes.Class) (classes.Class, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (id, name, owner_id, owner_name, profile)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, c.ID, c.Name, c.OwnerID, c.OwnerName, c.ProfileImageRef)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return classes.Class{}, fmt.Errorf("insert class: %w", err)
	}
	return c, nil
}

// GetClass returns a class by id.
func (r *Postgres) GetClass(ctx context.Context, id string) (classes.Class, error) {
	c, err := scanClass(r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return classes.Class{}, ErrNotFound
	}
	return c, err
}

// ListOwnedClasses returns classes owned by userID, newest first.
func (r *Postgres) ListOwnedClasses(ctx context.Context, userID string) ([]classes.Class, error) {
	return r.queryClasses(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.owner_id = $1 ORDER BY c.created_at DESC`, userID)
}

// ListMemberClasses returns classes userID joined, in join order.
func (r *Postgres) ListMemberClasses(ctx context.Context, userID string) ([]classes.Class, error) {
	return r.queryClasses(ctx, `
		SELECT `+classColumns+`
		FROM classes c JOIN class_members m ON m.class_id = c.id
		WHERE m.user_id = $1
		ORDER BY m.joined_at
	`, userID)
}

func (r *Postgres) queryClasses(ctx context.Context, query string, args ...any) ([]classes.Class, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []classes.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// AddMember enrolls userID in a class. Joining twice is a no-op.
func (r *Postgres) AddMember(ctx context.Context, classID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO class_members (class_id, user_id)
		SELECT id, $2 FROM classes WHERE id = $1
		ON CONFLICT (class_id, user_id) DO NOTHING
	`, classID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetClass(ctx, classID); err != nil {
			return err
		}
	}
	return nil
}

// IsMember reports whether userID joined the class.
func (r *Postgres) IsMember(ctx context.Context, classID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM class_members WHERE class_id = $1 AND user_id = $2)
	`, classID, userID).Scan(&ok)
	return ok, err
}

// DeleteClass removes a class; timelines, records and memberships cascade.
func (r *Postgres) DeleteClass(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `DELETE FROM classes WHERE id = $1`, id)
}

const timelineColumns = `id, class_id, description, starts_at, ends_at, location_range, latitude, longitude, created_at`

func scanTimeline(row scanner) (timeline.Session, error) {
	var s timeline.Session
	err := row.Scan(&s.ID, &s.ClassID, &s.Description, &s.From, &s.To, &s.LocationRange, &s.Center.Latitude, &s.Center.Longitude, &s.CreatedAt)
	return s, err
}

// CreateTimeline inserts a session.
func (r *Postgres) CreateTimeline(ctx context.Context, s timeline.Session) (timeline.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO timelines (id, class_id, description, starts_at, ends_at, location_range, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, s.ID, s.ClassID, s.Description, s.From.UTC(), s.To.UTC(), s.LocationRange, s.Center.Latitude, s.Center.Longitude)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return timeline.Session{}, fmt.Errorf("insert timeline: %w", err)
	}
	s.Attendances = []attendance.Record{}
	return s, nil
}

// GetTimeline returns a session with its records.
func (r *Postgres) GetTimeline(ctx context.Context, id string) (timeline.Session, error) {
	s, err := scanTimeline(r.db.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timelines WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Session{}, ErrNotFound
	}
	if err != nil {
		return timeline.Session{}, err
	}
	recs, err := r.records(ctx, `WHERE r.timeline_id = $1`, id)
	if err != nil {
		return timeline.Session{}, err
	}
	s.Attendances = recs[id]
	if s.Attendances == nil {
		s.Attendances = []attendance.Record{}
	}
	return s, nil
}

// ListTimelines returns a class's sessions in creation order.
func (r *Postgres) ListTimelines(ctx context.Context, classID string) ([]timeline.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+timelineColumns+` FROM timelines WHERE class_id = $1 ORDER BY created_at, id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []timeline.Session{}
	for rows.Next() {
		s, err := scanTimeline(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recs, err := r.records(ctx, `JOIN timelines t ON t.id = r.timeline_id WHERE t.class_id = $1`, classID)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Attendances = recs[res[i].ID]
		if res[i].Attendances == nil {
			res[i].Attendances = []attendance.Record{}
		}
	}
	return res, nil
}

// UpdateTimeline replaces the editable fields of a session.
func (r *Postgres) UpdateTimeline(ctx context.Context, id string, f timeline.Fields) (timeline.Session, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE timelines
		SET description = $2, starts_at = $3, ends_at = $4, location_range = $5, latitude = $6, longitude = $7
		WHERE id = $1
	`, id, f.Description, f.From.UTC(), f.To.UTC(), f.LocationRange, f.Center.Latitude, f.Center.Longitude)
	if err != nil {
		return timeline.Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.Session{}, ErrNotFound
	}
	return r.GetTimeline(ctx, id)
}

// DeleteTimeline removes a session and its records.
func (r *Postgres) DeleteTimeline(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `DELETE FROM timelines WHERE id = $1`, id)
}

// SaveRecord upserts the record for (timelineID, r.UserID). Flags only move
// forward and the first timestamps win.
func (r *Postgres) SaveRecord(ctx context.Context, timelineID string, rec attendance.Record) (attendance.Record, error) {
	if err := rec.Validate(); err != nil {
		return attendance.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, timeline_id, user_id, checked_in, checked_out, checked_in_at, checked_out_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (timeline_id, user_id) DO UPDATE SET
			checked_in = attendance_records.checked_in OR EXCLUDED.checked_in,
			checked_out = attendance_records.checked_out OR EXCLUDED.checked_out,
			checked_in_at = COALESCE(attendance_records.checked_in_at, EXCLUDED.checked_in_at),
			checked_out_at = COALESCE(attendance_records.checked_out_at, EXCLUDED.checked_out_at)
		RETURNING id, checked_in, checked_out, checked_in_at, checked_out_at
	`, rec.ID, timelineID, rec.UserID, rec.CheckedIn, rec.CheckedOut, rec.CheckedInAt, rec.CheckedOutAt)
	if err := row.Scan(&rec.ID, &rec.CheckedIn, &rec.CheckedOut, &rec.CheckedInAt, &rec.CheckedOutAt); err != nil {
		return attendance.Record{}, fmt.Errorf("save record: %w", err)
	}
	return rec, nil
}

// records loads attendance rows grouped by timeline id.
func (r *Postgres) records(ctx context.Context, where string, args ...any) (map[string][]attendance.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.timeline_id, r.user_id, r.checked_in, r.checked_out, r.checked_in_at, r.checked_out_at
		FROM attendance_records r `+where+`
		ORDER BY r.checked_in_at NULLS LAST, r.id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]attendance.Record{}
	for rows.Next() {
		var (
			rec        attendance.Record
			timelineID string
			in, out2   sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &timelineID, &rec.UserID, &rec.CheckedIn, &rec.CheckedOut, &in, &out2); err != nil {
			return nil, err
		}
		if in.Valid {
			t := in.Time
			rec.CheckedInAt = &t
		}
		if out2.Valid {
			t := out2.Time
			rec.CheckedOutAt = &t
		}
		out[timelineID] = append(out[timelineID], rec)
	}
	return out, rows.Err()
}

// AppendEvent writes an audit entry. Replays of the same event id are
// ignored.
func (r *Postgres) AppendEvent(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, class_id, timeline_id, user_id, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.Type, evt.ClassID, evt.TimelineID, evt.UserID, evt.OccurredAt)
	return err
}

// ListEvents returns the most recent audit entries.
func (r *Postgres) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, class_id, timeline_id, user_id, occurred_at
		FROM audit_events ORDER BY occurred_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Type, &e.ClassID, &e.TimelineID, &e.UserID, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *Postgres) deleteByID(ctx context.Context, query, id string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
