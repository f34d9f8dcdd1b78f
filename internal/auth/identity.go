package auth

import "errors"

// ErrNotOwner is returned when a caller tries an owner-only action.
var ErrNotOwner = errors.New("caller is not the class owner")

// Identity is the authenticated caller. It is passed explicitly to every
// manager; nothing in the core reads it from global state.
type Identity struct {
	UserID string
	Token  string
}

// Owns reports whether the identity matches ownerID.
func (i Identity) Owns(ownerID string) bool {
	return i.UserID != "" && i.UserID == ownerID
}
