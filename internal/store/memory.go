package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/attendance"
	"geoattend/internal/classes"
	"geoattend/internal/timeline"
)

var _ Repository = (*Memory)(nil)

// Memory is an in-process Repository used for local runs and tests.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int

	classes   map[string]classes.Class
	members   map[string][]string // class id -> user ids in join order
	timelines map[string]memTimeline
	records   map[string][]attendance.Record // timeline id -> records
	events    []Event
}

type memTimeline struct {
	session timeline.Session
	seq     int
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		classes:   map[string]classes.Class{},
		members:   map[string][]string{},
		timelines: map[string]memTimeline{},
		records:   map[string][]attendance.Record{},
	}
}

func (m *Memory) CreateClass(_ context.Context, c classes.Class) (classes.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	m.classes[c.ID] = c
	return c, nil
}

func (m *Memory) GetClass(_ context.Context, id string) (classes.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return classes.Class{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListOwnedClasses(_ context.Context, userID string) ([]classes.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := []classes.Class{}
	for _, c := range m.classes {
		if c.OwnerID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *Memory) ListMemberClasses(_ context.Context, userID string) ([]classes.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type joined struct {
		c   classes.Class
		pos int
	}
	var list []joined
	for classID, users := range m.members {
		for i, u := range users {
			if u == userID {
				list = append(list, joined{m.classes[classID], i})
			}
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].pos == list[j].pos {
			return list[i].c.ID < list[j].c.ID
		}
		return list[i].pos < list[j].pos
	})
	res := make([]classes.Class, 0, len(list))
	for _, j := range list {
		res = append(res, j.c)
	}
	return res, nil
}

func (m *Memory) AddMember(_ context.Context, classID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[classID]; !ok {
		return ErrNotFound
	}
	for _, u := range m.members[classID] {
		if u == userID {
			return nil
		}
	}
	m.members[classID] = append(m.members[classID], userID)
	return nil
}

func (m *Memory) IsMember(_ context.Context, classID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.members[classID] {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

// DeleteClass removes the class with its memberships, timelines and records.
func (m *Memory) DeleteClass(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[id]; !ok {
		return ErrNotFound
	}
	delete(m.classes, id)
	delete(m.members, id)
	for tid, t := range m.timelines {
		if t.session.ClassID == id {
			delete(m.timelines, tid)
			delete(m.records, tid)
		}
	}
	return nil
}

func (m *Memory) CreateTimeline(_ context.Context, s timeline.Session) (timeline.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[s.ClassID]; !ok {
		return timeline.Session{}, ErrNotFound
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	s.Attendances = nil
	m.seq++
	m.timelines[s.ID] = memTimeline{session: s, seq: m.seq}
	s.Attendances = []attendance.Record{}
	return s, nil
}

func (m *Memory) GetTimeline(_ context.Context, id string) (timeline.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.timelines[id]
	if !ok {
		return timeline.Session{}, ErrNotFound
	}
	return m.withRecords(t.session), nil
}

func (m *Memory) ListTimelines(_ context.Context, classID string) ([]timeline.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []memTimeline
	for _, t := range m.timelines {
		if t.session.ClassID == classID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	res := make([]timeline.Session, 0, len(list))
	for _, t := range list {
		res = append(res, m.withRecords(t.session))
	}
	return res, nil
}

func (m *Memory) UpdateTimeline(_ context.Context, id string, f timeline.Fields) (timeline.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timelines[id]
	if !ok {
		return timeline.Session{}, ErrNotFound
	}
	t.session.Description = f.Description
	t.session.From = f.From
	t.session.To = f.To
	t.session.LocationRange = f.LocationRange
	t.session.Center = f.Center
	m.timelines[id] = t
	return m.withRecords(t.session), nil
}

func (m *Memory) DeleteTimeline(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timelines[id]; !ok {
		return ErrNotFound
	}
	delete(m.timelines, id)
	delete(m.records, id)
	return nil
}

// SaveRecord upserts by user id. Flags only move forward and existing
// timestamps are kept.
func (m *Memory) SaveRecord(_ context.Context, timelineID string, rec attendance.Record) (attendance.Record, error) {
	if err := rec.Validate(); err != nil {
		return attendance.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timelines[timelineID]; !ok {
		return attendance.Record{}, ErrNotFound
	}
	list := m.records[timelineID]
	for i, cur := range list {
		if cur.UserID != rec.UserID {
			continue
		}
		rec.ID = cur.ID
		rec.CheckedIn = rec.CheckedIn || cur.CheckedIn
		rec.CheckedOut = rec.CheckedOut || cur.CheckedOut
		if cur.CheckedInAt != nil {
			rec.CheckedInAt = cur.CheckedInAt
		}
		if cur.CheckedOutAt != nil {
			rec.CheckedOutAt = cur.CheckedOutAt
		}
		list[i] = rec
		return rec, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records[timelineID] = append(list, rec)
	return rec, nil
}

func (m *Memory) AppendEvent(_ context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	for _, e := range m.events {
		if e.ID == evt.ID {
			return nil
		}
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = m.now().UTC()
	}
	m.events = append(m.events, evt)
	return nil
}

// ListEvents returns the newest events first.
func (m *Memory) ListEvents(_ context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	res := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, m.events[i])
	}
	return res, nil
}

func (m *Memory) withRecords(s timeline.Session) timeline.Session {
	s.Attendances = append([]attendance.Record{}, m.records[s.ID]...)
	return s
}
