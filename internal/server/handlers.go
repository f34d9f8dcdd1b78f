package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/classes"
	"geoattend/internal/geofence"
	"geoattend/internal/queue"
	"geoattend/internal/remote"
	"geoattend/internal/store"
	"geoattend/internal/timeline"
)

// caller returns the authenticated identity and checks that a userId sent
// in the body, if any, names the same user.
func caller(c *gin.Context, bodyUserID string) (auth.Identity, error) {
	id, ok := auth.FromContext(c)
	if !ok {
		return auth.Identity{}, errUserMismatch
	}
	if bodyUserID != "" && bodyUserID != id.UserID {
		return auth.Identity{}, errUserMismatch
	}
	return id, nil
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func (s *Server) listOwnedClasses(c *gin.Context) {
	list, err := s.repo.ListOwnedClasses(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, classDocs(list))
}

func (s *Server) listMemberClasses(c *gin.Context) {
	list, err := s.repo.ListMemberClasses(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, classDocs(list))
}

func classDocs(list []classes.Class) []remote.ClassDoc {
	out := make([]remote.ClassDoc, 0, len(list))
	for _, cls := range list {
		out = append(out, remote.NewClassDoc(cls))
	}
	return out
}

type createClassRequest struct {
	UserID    string `json:"userId"`
	Name      string `json:"className"`
	OwnerName string `json:"ownerName"`
	Profile   string `json:"classProfile"`
}

func (s *Server) createClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadBody, err))
		return
	}
	id, err := caller(c, req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.fail(c, &timeline.ValidationError{Field: "className", Reason: "must not be empty"})
		return
	}
	cls, err := s.repo.CreateClass(c.Request.Context(), classes.Class{
		Name:            strings.TrimSpace(req.Name),
		OwnerID:         id.UserID,
		OwnerName:       req.OwnerName,
		ProfileImageRef: req.Profile,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, remote.NewClassDoc(cls))
}

func (s *Server) joinClass(c *gin.Context) {
	var req remote.OwnerBody
	if err := bindOptional(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	id, err := caller(c, req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	cls, err := s.class(c.Request.Context(), c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if id.Owns(cls.OwnerID) {
		s.fail(c, errOwnerJoin)
		return
	}
	if err := s.repo.AddMember(c.Request.Context(), cls.ID, id.UserID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.NewClassDoc(cls))
}

func (s *Server) deleteClass(c *gin.Context) {
	var req remote.OwnerBody
	if err := bindOptional(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	id, err := caller(c, req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	cls, err := s.ownedClass(c.Request.Context(), id, c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.DeleteClass(c.Request.Context(), cls.ID); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(store.Event{Type: queue.ClassDeleted, ClassID: cls.ID, UserID: id.UserID})
	c.JSON(http.StatusOK, remote.MessageBody{Message: "Class deleted"})
}

func (s *Server) listTimelines(c *gin.Context) {
	id, _ := auth.FromContext(c)
	cls, err := s.class(c.Request.Context(), c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.canAttend(c.Request.Context(), id, cls); err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.repo.ListTimelines(c.Request.Context(), cls.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	docs := make([]remote.TimelineDoc, 0, len(list))
	for _, t := range list {
		docs = append(docs, remote.NewTimelineDoc(t))
	}
	c.JSON(http.StatusOK, remote.TimelineList{Attendance: docs})
}

// timelineFields binds and validates a create/edit body.
func (s *Server) timelineFields(c *gin.Context) (auth.Identity, timeline.Fields, error) {
	var body remote.TimelineBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return auth.Identity{}, timeline.Fields{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	id, err := caller(c, body.UserID)
	if err != nil {
		return auth.Identity{}, timeline.Fields{}, err
	}
	f, err := body.Fields()
	if err != nil {
		return auth.Identity{}, timeline.Fields{}, err
	}
	f.Description = strings.TrimSpace(f.Description)
	if err := f.Validate(); err != nil {
		return auth.Identity{}, timeline.Fields{}, err
	}
	return id, f, nil
}

func (s *Server) createTimeline(c *gin.Context) {
	id, f, err := s.timelineFields(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	cls, err := s.ownedClass(c.Request.Context(), id, c.Param("classId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.repo.CreateTimeline(c.Request.Context(), timeline.Session{
		ClassID:       cls.ID,
		Description:   f.Description,
		From:          f.From,
		To:            f.To,
		LocationRange: f.LocationRange,
		Center:        f.Center,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, remote.NewTimelineDoc(t))
}

func (s *Server) editTimeline(c *gin.Context) {
	id, f, err := s.timelineFields(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.ownedTimeline(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err = s.repo.UpdateTimeline(c.Request.Context(), t.ID, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.NewTimelineDoc(t))
}

func (s *Server) deleteTimeline(c *gin.Context) {
	var req remote.OwnerBody
	if err := bindOptional(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	id, err := caller(c, req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.ownedTimeline(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.DeleteTimeline(c.Request.Context(), t.ID); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(store.Event{Type: queue.TimelineDeleted, ClassID: t.ClassID, TimelineID: t.ID, UserID: id.UserID})
	c.JSON(http.StatusOK, remote.MessageBody{Message: "Timeline deleted"})
}

func (s *Server) checkIn(c *gin.Context) {
	s.attend(c, "check_in", queue.CheckedIn, attendance.Record.CheckIn)
}

func (s *Server) checkOut(c *gin.Context) {
	s.attend(c, "check_out", queue.CheckedOut, attendance.Record.CheckOut)
}

type transition func(r attendance.Record, at time.Time) (attendance.Record, error)

// attend applies the transition, admits the caller at the posted location
// and stores the record. Repeating a completed transition returns the stored
// record without an admission check or a new event.
func (s *Server) attend(c *gin.Context, kind, eventType string, next transition) {
	var body remote.PresenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadBody, err))
		return
	}
	id, err := caller(c, body.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := s.timeline(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	cls, err := s.class(ctx, t.ClassID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.canAttend(ctx, id, cls); err != nil {
		s.fail(c, err)
		return
	}

	now := s.now()
	cur, _ := t.Record(id.UserID)
	if cur.UserID == "" {
		cur.UserID = id.UserID
	}
	rec, err := next(cur, now)
	if err != nil {
		s.attendanceOutcome(kind, outcomeOf(err))
		s.fail(c, err)
		return
	}
	if rec.State() == cur.State() {
		s.attendanceOutcome(kind, "repeat")
		c.JSON(http.StatusOK, remote.NewAttendanceDoc(rec))
		return
	}

	point := geofence.Point{Latitude: body.Latitude, Longitude: body.Longitude}
	if err := t.Checkpoint().Admit(point, now); err != nil {
		s.attendanceOutcome(kind, outcomeOf(err))
		s.fail(c, err)
		return
	}

	rec, err = s.repo.SaveRecord(ctx, t.ID, rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.attendanceOutcome(kind, "admitted")
	s.publish(store.Event{Type: eventType, ClassID: t.ClassID, TimelineID: t.ID, UserID: id.UserID})
	c.JSON(http.StatusOK, remote.NewAttendanceDoc(rec))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, attendance.ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, attendance.ErrOutsideGeofence):
		return "outside_geofence"
	case errors.Is(err, attendance.ErrInvalidStateTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}

func (s *Server) class(ctx context.Context, classID string) (classes.Class, error) {
	cls, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return classes.Class{}, fmt.Errorf("class %w", err)
	}
	return cls, nil
}

func (s *Server) timeline(ctx context.Context, timelineID string) (timeline.Session, error) {
	t, err := s.repo.GetTimeline(ctx, timelineID)
	if err != nil {
		return timeline.Session{}, fmt.Errorf("timeline %w", err)
	}
	return t, nil
}

func (s *Server) ownedClass(ctx context.Context, id auth.Identity, classID string) (classes.Class, error) {
	cls, err := s.class(ctx, classID)
	if err != nil {
		return classes.Class{}, err
	}
	if !id.Owns(cls.OwnerID) {
		return classes.Class{}, auth.ErrNotOwner
	}
	return cls, nil
}

func (s *Server) ownedTimeline(ctx context.Context, id auth.Identity, timelineID string) (timeline.Session, error) {
	t, err := s.timeline(ctx, timelineID)
	if err != nil {
		return timeline.Session{}, err
	}
	if _, err := s.ownedClass(ctx, id, t.ClassID); err != nil {
		return timeline.Session{}, err
	}
	return t, nil
}

// canAttend allows the owner and enrolled members.
func (s *Server) canAttend(ctx context.Context, id auth.Identity, cls classes.Class) error {
	if id.Owns(cls.OwnerID) {
		return nil
	}
	ok, err := s.repo.IsMember(ctx, cls.ID, id.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotEnrolled
	}
	return nil
}
