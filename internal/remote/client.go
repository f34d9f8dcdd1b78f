package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/classes"
	"geoattend/internal/geofence"
	"geoattend/internal/timeline"
)

var (
	_ classes.API  = (*Client)(nil)
	_ timeline.API = (*Client)(nil)
)

// Client calls the attendance backend. Every request carries the caller's
// opaque credential; the client never retries.
type Client struct {
	BaseURL string
	Header  string
	HTTP    *http.Client
}

// New creates a client. header defaults to auth-token, timeout to 15s.
func New(baseURL, header string, timeout time.Duration) *Client {
	if header == "" {
		header = auth.HeaderToken
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Header:  header,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ListOwnedClasses returns the classes id owns, in server order.
func (c *Client) ListOwnedClasses(ctx context.Context, id auth.Identity) ([]classes.Class, error) {
	return c.listClasses(ctx, id, "list owned classes", "/user/get-class-owner/"+url.PathEscape(id.UserID))
}

// ListMemberClasses returns the classes id belongs to.
func (c *Client) ListMemberClasses(ctx context.Context, id auth.Identity) ([]classes.Class, error) {
	return c.listClasses(ctx, id, "list member classes", "/user/get-students-class/"+url.PathEscape(id.UserID))
}

func (c *Client) listClasses(ctx context.Context, id auth.Identity, op, path string) ([]classes.Class, error) {
	var docs []ClassDoc
	if err := c.do(ctx, op, http.MethodGet, path, id, nil, &docs); err != nil {
		return nil, err
	}
	out := make([]classes.Class, 0, len(docs))
	for _, d := range docs {
		cls, err := d.Class()
		if err != nil {
			return nil, err
		}
		out = append(out, cls)
	}
	return out, nil
}

// DeleteClass deletes a class and everything under it.
func (c *Client) DeleteClass(ctx context.Context, id auth.Identity, classID string) error {
	return c.do(ctx, "delete class", http.MethodDelete, "/class/delete-class/"+url.PathEscape(classID), id, OwnerBody{UserID: id.UserID}, nil)
}

// ListTimelines returns the sessions of a class.
func (c *Client) ListTimelines(ctx context.Context, id auth.Identity, classID string) ([]timeline.Session, error) {
	var env TimelineList
	if err := c.do(ctx, "list timelines", http.MethodGet, "/attendance/get-subclass/"+url.PathEscape(classID), id, nil, &env); err != nil {
		return nil, err
	}
	out := make([]timeline.Session, 0, len(env.Attendance))
	for _, d := range env.Attendance {
		s, err := d.Session()
		if err != nil {
			return nil, err
		}
		if s.ClassID == "" {
			s.ClassID = classID
		}
		out = append(out, s)
	}
	return out, nil
}

// CreateTimeline creates a session under classID.
func (c *Client) CreateTimeline(ctx context.Context, id auth.Identity, classID string, f timeline.Fields) (timeline.Session, error) {
	var doc TimelineDoc
	path := "/attendance/create-timeline/" + url.PathEscape(classID)
	if err := c.do(ctx, "create timeline", http.MethodPost, path, id, NewTimelineBody(id.UserID, f), &doc); err != nil {
		return timeline.Session{}, err
	}
	s, err := doc.Session()
	if err != nil {
		return timeline.Session{}, err
	}
	if s.ClassID == "" {
		s.ClassID = classID
	}
	return s, nil
}

// EditTimeline replaces the editable fields of a session.
func (c *Client) EditTimeline(ctx context.Context, id auth.Identity, sessionID string, f timeline.Fields) (timeline.Session, error) {
	var doc TimelineDoc
	path := "/attendance/edit-timeline/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "edit timeline", http.MethodPatch, path, id, NewTimelineBody(id.UserID, f), &doc); err != nil {
		return timeline.Session{}, err
	}
	return doc.Session()
}

// DeleteTimeline deletes a session and its records.
func (c *Client) DeleteTimeline(ctx context.Context, id auth.Identity, sessionID string) error {
	return c.do(ctx, "delete timeline", http.MethodDelete, "/attendance/delete-timeline/"+url.PathEscape(sessionID), id, OwnerBody{UserID: id.UserID}, nil)
}

// CheckIn asks the backend to admit id into a session at a location.
func (c *Client) CheckIn(ctx context.Context, id auth.Identity, sessionID string, at geofence.Point) (attendance.Record, error) {
	return c.presence(ctx, id, "check in", http.MethodPost, "/attendance/check-in/"+url.PathEscape(sessionID), at)
}

// CheckOut closes id's attendance in a session.
func (c *Client) CheckOut(ctx context.Context, id auth.Identity, sessionID string, at geofence.Point) (attendance.Record, error) {
	return c.presence(ctx, id, "check out", http.MethodPatch, "/attendance/check-out/"+url.PathEscape(sessionID), at)
}

func (c *Client) presence(ctx context.Context, id auth.Identity, op, method, path string, at geofence.Point) (attendance.Record, error) {
	body := PresenceBody{UserID: id.UserID, Latitude: at.Latitude, Longitude: at.Longitude}
	var doc AttendanceDoc
	if err := c.do(ctx, op, method, path, id, body, &doc); err != nil {
		return attendance.Record{}, err
	}
	return doc.Record()
}

// do performs one round trip. Non-2xx responses become *RemoteError,
// failures before a status become *TransportError and undecodable bodies
// *DecodeError.
func (c *Client) do(ctx context.Context, op, method, path string, id auth.Identity, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id.Token != "" {
		req.Header.Set(c.Header, c.credential(id.Token))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Message: message(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Entity: op, Reason: "malformed response body", Err: err}
	}
	return nil
}

func (c *Client) credential(token string) string {
	if strings.EqualFold(c.Header, "Authorization") {
		return "Bearer " + token
	}
	return token
}

// message extracts the server's text from an error body.
func message(raw []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
