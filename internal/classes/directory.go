package classes

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"geoattend/internal/auth"
	"geoattend/internal/confirm"
)

// API is the slice of the remote adapter the directory needs.
type API interface {
	ListOwnedClasses(ctx context.Context, id auth.Identity) ([]Class, error)
	ListMemberClasses(ctx context.Context, id auth.Identity) ([]Class, error)
	DeleteClass(ctx context.Context, id auth.Identity, classID string) error
}

// Directory holds the caller's owned and member class lists.
//
// The mutex only protects the slices; it is never held across a remote call,
// so overlapping mutations are not serialized.
type Directory struct {
	api API
	id  auth.Identity
	log zerolog.Logger

	mu       sync.Mutex
	owned    []Class
	member   []Class
	inflight int
}

// NewDirectory binds a directory to one caller.
func NewDirectory(api API, id auth.Identity, log zerolog.Logger) *Directory {
	return &Directory{
		api: api,
		id:  id,
		log: log.With().Str("component", "classes").Str("user", id.UserID).Logger(),
	}
}

// ListOwned fetches the classes the caller owns, most recent first. On
// failure the owned list is cleared, the error is logged and returned.
func (d *Directory) ListOwned(ctx context.Context) ([]Class, error) {
	d.begin()
	list, err := d.api.ListOwnedClasses(ctx, d.id)
	d.end()
	if err != nil {
		d.log.Warn().Err(err).Str("op", "list_owned").Msg("class list unavailable")
		d.setOwned(nil)
		return nil, err
	}
	SortByRecency(list)
	d.setOwned(list)
	return d.Owned(), nil
}

// ListMember fetches the classes the caller belongs to, in server order.
func (d *Directory) ListMember(ctx context.Context) ([]Class, error) {
	d.begin()
	list, err := d.api.ListMemberClasses(ctx, d.id)
	d.end()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.log.Warn().Err(err).Str("op", "list_member").Msg("class list unavailable")
		d.member = nil
		return nil, err
	}
	d.member = list
	return append([]Class(nil), list...), nil
}

// Delete removes an owned class. Errors from the server are returned as is
// and leave the list untouched.
func (d *Directory) Delete(ctx context.Context, classID string) error {
	cls, ok := d.findOwned(classID)
	if !ok {
		return fmt.Errorf("class %s is not in the owned list: %w", classID, auth.ErrNotOwner)
	}
	if !d.id.Owns(cls.OwnerID) {
		return auth.ErrNotOwner
	}

	d.begin()
	err := d.api.DeleteClass(ctx, d.id, classID)
	d.end()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.owned = removeClass(d.owned, classID)
	return nil
}

// ConfirmDelete opens a confirmation prompt wrapping Delete.
func (d *Directory) ConfirmDelete(classID string) *confirm.Prompt {
	subject := "Are you sure you want to delete this class?"
	if cls, ok := d.findOwned(classID); ok {
		subject = fmt.Sprintf("Are you sure you want to delete %q?", cls.Name)
	}
	return confirm.New(subject, func(ctx context.Context) error {
		return d.Delete(ctx, classID)
	}).Prompt()
}

// Owned returns a copy of the owned list.
func (d *Directory) Owned() []Class {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Class(nil), d.owned...)
}

// Member returns a copy of the member list.
func (d *Directory) Member() []Class {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Class(nil), d.member...)
}

// Loading reports whether a remote call is in flight.
func (d *Directory) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight > 0
}

func (d *Directory) begin() {
	d.mu.Lock()
	d.inflight++
	d.mu.Unlock()
}

func (d *Directory) end() {
	d.mu.Lock()
	d.inflight--
	d.mu.Unlock()
}

func (d *Directory) setOwned(list []Class) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owned = list
}

func (d *Directory) findOwned(classID string) (Class, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.owned {
		if c.ID == classID {
			return c, true
		}
	}
	return Class{}, false
}

func removeClass(list []Class, id string) []Class {
	out := list[:0:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
