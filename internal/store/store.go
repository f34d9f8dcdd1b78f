package store

import (
	"context"
	"errors"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/classes"
	"geoattend/internal/timeline"
)

// ErrNotFound is returned when a class, timeline or record does not exist.
var ErrNotFound = errors.New("not found")

// Event is an audit entry written by the worker.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ClassID    string    `json:"classId,omitempty"`
	TimelineID string    `json:"timelineId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Repository persists classes, timelines and attendance records for the
// reference backend.
type Repository interface {
	CreateClass(ctx context.Context, c classes.Class) (classes.Class, error)
	GetClass(ctx context.Context, id string) (classes.Class, error)
	ListOwnedClasses(ctx context.Context, userID string) ([]classes.Class, error)
	ListMemberClasses(ctx context.Context, userID string) ([]classes.Class, error)
	AddMember(ctx context.Context, classID, userID string) error
	IsMember(ctx context.Context, classID, userID string) (bool, error)
	DeleteClass(ctx context.Context, id string) error

	CreateTimeline(ctx context.Context, s timeline.Session) (timeline.Session, error)
	GetTimeline(ctx context.Context, id string) (timeline.Session, error)
	ListTimelines(ctx context.Context, classID string) ([]timeline.Session, error)
	UpdateTimeline(ctx context.Context, id string, f timeline.Fields) (timeline.Session, error)
	DeleteTimeline(ctx context.Context, id string) error

	SaveRecord(ctx context.Context, timelineID string, r attendance.Record) (attendance.Record, error)

	AppendEvent(ctx context.Context, evt Event) error
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}
