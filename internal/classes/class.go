package classes

import (
	"net/url"
	"sort"
	"time"
)

// Class is owned by exactly one user and read by its members.
type Class struct {
	ID              string
	Name            string
	OwnerID         string
	OwnerName       string
	ProfileImageRef string
	CreatedAt       time.Time
}

// ProfileURL returns the profile image reference with an opaque cache-busting
// token appended. Non-URL references and empty tokens pass through unchanged.
func (c Class) ProfileURL(token string) string {
	if c.ProfileImageRef == "" || token == "" {
		return c.ProfileImageRef
	}
	u, err := url.Parse(c.ProfileImageRef)
	if err != nil || u.Scheme == "" {
		return c.ProfileImageRef
	}
	q := u.Query()
	q.Set("v", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SortByRecency orders classes most recent first.
func SortByRecency(list []Class) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
