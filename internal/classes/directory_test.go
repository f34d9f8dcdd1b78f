package classes

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"geoattend/internal/auth"
)

type fakeAPI struct {
	owned    []Class
	member   []Class
	err      error
	delErr   error
	deleted  []string
	loading  func() bool
	sawLoad  bool
	identity auth.Identity
}

func (f *fakeAPI) ListOwnedClasses(_ context.Context, id auth.Identity) ([]Class, error) {
	f.identity = id
	f.sawLoad = f.loading != nil && f.loading()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Class(nil), f.owned...), nil
}

func (f *fakeAPI) ListMemberClasses(_ context.Context, id auth.Identity) ([]Class, error) {
	f.identity = id
	f.sawLoad = f.loading != nil && f.loading()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Class(nil), f.member...), nil
}

func (f *fakeAPI) DeleteClass(_ context.Context, _ auth.Identity, classID string) error {
	f.sawLoad = f.loading != nil && f.loading()
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, classID)
	return nil
}

var (
	me     = auth.Identity{UserID: "u1", Token: "t"}
	day    = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	quiet  = zerolog.New(io.Discard)
	errOff = errors.New("offline")
)

func TestListOwnedSortsMostRecentFirst(t *testing.T) {
	api := &fakeAPI{owned: []Class{
		{ID: "a", OwnerID: "u1", CreatedAt: day},
		{ID: "b", OwnerID: "u1", CreatedAt: day.Add(48 * time.Hour)},
		{ID: "c", OwnerID: "u1", CreatedAt: day.Add(24 * time.Hour)},
	}}
	d := NewDirectory(api, me, quiet)
	api.loading = d.Loading

	got, err := d.ListOwned(context.Background())
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
		t.Fatalf("unexpected order: %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
	if !api.sawLoad || d.Loading() {
		t.Fatalf("loading flag not toggled around fetch")
	}
	if api.identity != me {
		t.Fatalf("identity not passed")
	}
}

func TestListMemberKeepsServerOrder(t *testing.T) {
	api := &fakeAPI{member: []Class{
		{ID: "x", CreatedAt: day},
		{ID: "y", CreatedAt: day.Add(time.Hour)},
	}}
	d := NewDirectory(api, me, quiet)
	got, err := d.ListMember(context.Background())
	if err != nil {
		t.Fatalf("ListMember: %v", err)
	}
	if got[0].ID != "x" || got[1].ID != "y" {
		t.Fatalf("member list reordered")
	}
	if len(d.Member()) != 2 {
		t.Fatalf("member list not retained")
	}
}

func TestListFailureIsSwallowedIntoEmptyList(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", OwnerID: "u1"}}}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())

	api.err = errOff
	got, err := d.ListOwned(context.Background())
	if !errors.Is(err, errOff) {
		t.Fatalf("error not returned: %v", err)
	}
	if len(got) != 0 || len(d.Owned()) != 0 {
		t.Fatalf("stale list kept")
	}
	if d.Loading() {
		t.Fatalf("loading not cleared")
	}
	if _, err := d.ListMember(context.Background()); !errors.Is(err, errOff) {
		t.Fatalf("member error not returned: %v", err)
	}
}

func TestDeleteRemovesOwnedClass(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", OwnerID: "u1"}, {ID: "b", OwnerID: "u1"}}}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())

	if err := d.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	owned := d.Owned()
	if len(owned) != 1 || owned[0].ID != "b" {
		t.Fatalf("unexpected owned list %+v", owned)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", OwnerID: "someone-else"}}}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())

	if err := d.Delete(context.Background(), "a"); !errors.Is(err, auth.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := d.Delete(context.Background(), "missing"); !errors.Is(err, auth.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for unknown class, got %v", err)
	}
	if len(api.deleted) != 0 {
		t.Fatalf("unauthorized delete dispatched")
	}
}

func TestDeleteFailureKeepsList(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", OwnerID: "u1"}}, delErr: errOff}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())
	if err := d.Delete(context.Background(), "a"); !errors.Is(err, errOff) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(d.Owned()) != 1 {
		t.Fatalf("list mutated on failure")
	}
}

func TestConfirmDelete(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", Name: "Biology", OwnerID: "u1"}}}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())

	p := d.ConfirmDelete("a")
	p.Cancel()
	_ = p.Confirm(context.Background())
	if len(api.deleted) != 0 {
		t.Fatalf("cancelled prompt deleted the class")
	}
	p = d.ConfirmDelete("a")
	if err := p.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	_ = p.Confirm(context.Background())
	if len(api.deleted) != 1 {
		t.Fatalf("deleted %d times", len(api.deleted))
	}
}

func TestProfileURL(t *testing.T) {
	c := Class{ProfileImageRef: "https://cdn.example.com/p/1.png?size=64"}
	if got := c.ProfileURL("abc"); got != "https://cdn.example.com/p/1.png?size=64&v=abc" {
		t.Fatalf("ProfileURL = %q", got)
	}
	if got := c.ProfileURL(""); got != c.ProfileImageRef {
		t.Fatalf("empty token changed ref: %q", got)
	}
	local := Class{ProfileImageRef: "avatar-default"}
	if got := local.ProfileURL("abc"); got != "avatar-default" {
		t.Fatalf("non-URL ref changed: %q", got)
	}
}

func TestDeleteSetsLoading(t *testing.T) {
	api := &fakeAPI{owned: []Class{{ID: "a", OwnerID: "u1"}, {ID: "b", OwnerID: "u1"}}}
	d := NewDirectory(api, me, quiet)
	_, _ = d.ListOwned(context.Background())
	api.loading = d.Loading

	if err := d.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !api.sawLoad || d.Loading() {
		t.Fatalf("loading flag not toggled around delete")
	}

	api.delErr = errOff
	api.sawLoad = false
	if err := d.Delete(context.Background(), "b"); !errors.Is(err, errOff) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if !api.sawLoad || d.Loading() {
		t.Fatalf("loading flag not toggled around failed delete")
	}
}
