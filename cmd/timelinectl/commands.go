package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"geoattend/internal/auth"
	"geoattend/internal/classes"
	"geoattend/internal/confirm"
	"geoattend/internal/geofence"
	"geoattend/internal/timeline"
)

// common holds the flags every authenticated command takes.
type common struct {
	fs    *flag.FlagSet
	user  string
	token string
	class string
}

func newCommon(name string, out io.Writer) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.SetOutput(out)
	c.fs.StringVar(&c.user, "user", "", "acting user id")
	c.fs.StringVar(&c.token, "token", "", "credential")
	c.fs.StringVar(&c.class, "class", "", "class id")
	return c
}

func (c *common) parse(args []string, needClass bool) (auth.Identity, error) {
	if err := c.fs.Parse(args); err != nil {
		return auth.Identity{}, err
	}
	if needClass && c.class == "" {
		return auth.Identity{}, errors.New("-class is required")
	}
	return identity(c.user, c.token)
}

func (a *app) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "user id to mint a credential for")
	ttl := fs.Duration("ttl", a.cfg.AccessTTL, "credential lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := auth.Issue(*user, a.cfg.JWTIssuer, a.cfg.JWTSigningKey, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok.Value)
	return nil
}

func (a *app) classes(ctx context.Context, args []string) error {
	c := newCommon("classes", a.out)
	member := c.fs.Bool("member", false, "list joined classes instead of owned ones")
	id, err := c.parse(args, false)
	if err != nil {
		return err
	}
	dir := classes.NewDirectory(a.client, id, a.log)
	var list []classes.Class
	if *member {
		list, err = dir.ListMember(ctx)
	} else {
		list, err = dir.ListOwned(ctx)
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no classes")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER\tCREATED")
	for _, cls := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cls.ID, cls.Name, cls.OwnerName, formatTime(cls.CreatedAt))
	}
	return tw.Flush()
}

func (a *app) sessions(ctx context.Context, args []string) error {
	c := newCommon("sessions", a.out)
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	list, err := timeline.NewBoard(a.client, c.class, id, a.log).List(ctx)
	if err != nil {
		return err
	}
	printSessions(a.out, list)
	return nil
}

func printSessions(w io.Writer, list []timeline.Session) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no sessions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tFROM\tTO\tRADIUS\tIN\tOUT")
	for _, s := range list {
		counts := s.Counts()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0fm\t%d\t%d\n",
			s.ID, s.Description, formatTime(s.From), formatTime(s.To), s.Radius(), counts.CheckedIn, counts.CheckedOut)
	}
	_ = tw.Flush()
}

// sessionFlags registers the editable session fields on fs.
type sessionFlags struct {
	desc  string
	from  string
	to    string
	rng   float64
	lat   float64
	lon   float64
	isSet map[string]bool
}

func addSessionFlags(fs *flag.FlagSet) *sessionFlags {
	sf := &sessionFlags{}
	fs.StringVar(&sf.desc, "desc", "", "description")
	fs.StringVar(&sf.from, "from", "", "start time (RFC 3339)")
	fs.StringVar(&sf.to, "to", "", "end time (RFC 3339)")
	fs.Float64Var(&sf.rng, "range", 0, "location range (area in km²)")
	fs.Float64Var(&sf.lat, "lat", 0, "latitude of the session center")
	fs.Float64Var(&sf.lon, "lon", 0, "longitude of the session center")
	return sf
}

// apply copies the flags that were given onto f.
func (sf *sessionFlags) apply(fs *flag.FlagSet, f *timeline.Fields) error {
	sf.isSet = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { sf.isSet[fl.Name] = true })

	if sf.isSet["desc"] {
		f.Description = sf.desc
	}
	if sf.isSet["from"] {
		t, err := time.Parse(time.RFC3339, sf.from)
		if err != nil {
			return fmt.Errorf("-from: %w", err)
		}
		f.From = t
	}
	if sf.isSet["to"] {
		t, err := time.Parse(time.RFC3339, sf.to)
		if err != nil {
			return fmt.Errorf("-to: %w", err)
		}
		f.To = t
	}
	if sf.isSet["range"] {
		f.LocationRange = sf.rng
	}
	if sf.isSet["lat"] || sf.isSet["lon"] {
		p := f.Center
		if sf.isSet["lat"] {
			p.Latitude = sf.lat
		}
		if sf.isSet["lon"] {
			p.Longitude = sf.lon
		}
		f.Center = p
	}
	return nil
}

func (a *app) manager(ctx context.Context, id auth.Identity, classID string) (*timeline.Manager, error) {
	owned, err := classes.NewDirectory(a.client, id, a.log).ListOwned(ctx)
	if err != nil {
		return nil, err
	}
	for _, cls := range owned {
		if cls.ID == classID {
			m, err := timeline.NewManager(a.client, cls, id, a.log)
			if err != nil {
				return nil, err
			}
			if _, err := m.List(ctx); err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("class %s: %w", classID, auth.ErrNotOwner)
}

func (a *app) createSession(ctx context.Context, args []string) error {
	c := newCommon("create-session", a.out)
	sf := addSessionFlags(c.fs)
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	m, err := a.manager(ctx, id, c.class)
	if err != nil {
		return err
	}
	draft := timeline.NewDraft(geofence.Point{Latitude: sf.lat, Longitude: sf.lon})
	if err := sf.apply(c.fs, &draft.Fields); err != nil {
		return err
	}
	s, err := m.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created session %s (radius %.0fm)\n", s.ID, s.Radius())
	return nil
}

func (a *app) editSession(ctx context.Context, args []string) error {
	c := newCommon("edit-session", a.out)
	sid := c.fs.String("id", "", "session id")
	sf := addSessionFlags(c.fs)
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	m, err := a.manager(ctx, id, c.class)
	if err != nil {
		return err
	}
	cur, ok := m.Session(*sid)
	if !ok {
		return fmt.Errorf("session %q not found in class %s", *sid, c.class)
	}
	f := cur.Fields()
	if err := sf.apply(c.fs, &f); err != nil {
		return err
	}
	s, err := m.Update(ctx, cur.ID, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated session %s\n", s.ID)
	return nil
}

func (a *app) deleteSession(ctx context.Context, args []string) error {
	c := newCommon("delete-session", a.out)
	sid := c.fs.String("id", "", "session id")
	yes := c.fs.Bool("yes", false, "skip the confirmation prompt")
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	m, err := a.manager(ctx, id, c.class)
	if err != nil {
		return err
	}
	if err := a.resolve(ctx, m.ConfirmDelete(*sid), *yes); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "session deleted")
	return nil
}

func (a *app) deleteClass(ctx context.Context, args []string) error {
	c := newCommon("delete-class", a.out)
	yes := c.fs.Bool("yes", false, "skip the confirmation prompt")
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	dir := classes.NewDirectory(a.client, id, a.log)
	if _, err := dir.ListOwned(ctx); err != nil {
		return err
	}
	if err := a.resolve(ctx, dir.ConfirmDelete(c.class), *yes); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "class deleted")
	return nil
}

// resolve asks the user to confirm p, or confirms straight away when yes is
// set. Any answer other than y/yes cancels.
func (a *app) resolve(ctx context.Context, p *confirm.Prompt, yes bool) error {
	if !yes {
		fmt.Fprintf(a.out, "%s [y/N] ", p.Subject())
		if !readYes(a.in) {
			p.Cancel()
		}
	}
	return p.Confirm(ctx)
}

func readYes(r io.Reader) bool {
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *app) attend(ctx context.Context, args []string, in bool) error {
	name := "check-out"
	if in {
		name = "check-in"
	}
	c := newCommon(name, a.out)
	sid := c.fs.String("id", "", "session id")
	lat := c.fs.Float64("lat", 0, "current latitude")
	lon := c.fs.Float64("lon", 0, "current longitude")
	id, err := c.parse(args, true)
	if err != nil {
		return err
	}
	board := timeline.NewBoard(a.client, c.class, id, a.log)
	if _, err := board.List(ctx); err != nil {
		return err
	}
	at := geofence.Point{Latitude: *lat, Longitude: *lon}
	if in {
		_, err = board.CheckIn(ctx, *sid, at)
	} else {
		_, err = board.CheckOut(ctx, *sid, at)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s recorded\n", name)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
