// Command timelinectl manages classes and attendance sessions from a
// terminal. It talks to the backend configured by API_URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/logging"
	"geoattend/internal/remote"
)

const usage = `usage: timelinectl <command> [flags]

commands:
  token           mint a development credential
  classes         list owned (or, with -member, joined) classes
  sessions        list the sessions of a class
  create-session  create a session in an owned class
  edit-session    edit a session in an owned class
  delete-session  delete a session (asks for confirmation)
  delete-class    delete an owned class (asks for confirmation)
  check-in        check in to a session at a location
  check-out       check out of a session at a location

Credentials come from -user/-token or GEOATTEND_USER/GEOATTEND_TOKEN.
`

type app struct {
	cfg    config.App
	client *remote.Client
	log    zerolog.Logger
	in     io.Reader
	out    io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a := &app{
		cfg:    cfg,
		client: remote.New(cfg.APIURL, cfg.CredentialHeader, cfg.RequestTimeout),
		log:    logging.New(cfg.LogLevel, true, os.Stderr),
		in:     os.Stdin,
		out:    os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var rerr *remote.RemoteError
		if errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "server said (%d): %s\n", rerr.Status, rerr.Message)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "token":
		return a.token(args)
	case "classes":
		return a.classes(ctx, args)
	case "sessions":
		return a.sessions(ctx, args)
	case "create-session":
		return a.createSession(ctx, args)
	case "edit-session":
		return a.editSession(ctx, args)
	case "delete-session":
		return a.deleteSession(ctx, args)
	case "delete-class":
		return a.deleteClass(ctx, args)
	case "check-in":
		return a.attend(ctx, args, true)
	case "check-out":
		return a.attend(ctx, args, false)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func identity(user, token string) (auth.Identity, error) {
	if user == "" {
		user = os.Getenv("GEOATTEND_USER")
	}
	if token == "" {
		token = os.Getenv("GEOATTEND_TOKEN")
	}
	if user == "" || token == "" {
		return auth.Identity{}, errors.New("a user id and a token are required (see: timelinectl token)")
	}
	return auth.Identity{UserID: user, Token: token}, nil
}
