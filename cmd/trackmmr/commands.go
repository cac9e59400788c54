package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/api/auth"
	"golang.org/x/term"
)

const recentDays = 30

func (a *app) fetchAndReport(ctx context.Context) error {
	credentials, err := a.credentials.Load(ctx)
	if err != nil {
		return err
	}
	if !credentials.CanLogOn() {
		fmt.Fprintln(os.Stderr, "No saved login, enter your steam credentials.")
		if credentials, err = a.promptCredentials(ctx, credentials.Username); err != nil {
			return err
		}
	}
	return a.fetchWith(ctx, credentials)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "Steam account name (prompted when omitted)")
	_ = fs.Parse(args)

	credentials, err := a.promptCredentials(ctx, strings.TrimSpace(*username))
	if err != nil {
		return err
	}
	return a.fetchWith(ctx, credentials)
}

func (a *app) fetchWith(ctx context.Context, credentials trackmmr.Credentials) error {
	authn, err := a.authenticator(true)
	if err != nil {
		return err
	}

	result, err := a.fetch(ctx, credentials, authn)
	if err != nil {
		if trackmmr.ReauthRequired(err) {
			fmt.Fprintln(os.Stderr, "The saved login was rejected by steam, run `trackmmr login` to sign in again.")
		}
		return err
	}

	fmt.Fprintln(a.out)
	printFetchSummary(a.out, result)
	fmt.Fprintln(a.out)

	recent, err := a.store.GetHistory(ctx, recentDays)
	if err != nil {
		return err
	}
	return printHistory(a.out, recent, recentDays)
}

func (a *app) history(ctx context.Context, args []string) error {
	days := parseDays(args)
	records, err := a.store.GetHistory(ctx, days)
	if err != nil {
		return err
	}
	return printHistory(a.out, records, days)
}

// parseDays reads the optional day count of the history command. Anything that isn't a
// positive number means all time.
func parseDays(args []string) int {
	if len(args) == 0 {
		return 0
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 0 {
		return 0
	}
	return days
}

func (a *app) status(ctx context.Context) error {
	credentials, err := a.credentials.Load(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)

	account := credentials.Username
	if account == "" {
		account = "(none)"
	}
	fmt.Fprintf(w, "Account:\t%s\n", account)
	fmt.Fprintf(w, "Login:\t%s\n", describeToken(credentials.RefreshToken, time.Now()))

	run, found, err := a.store.LastRun(ctx)
	if err != nil {
		return err
	}
	switch {
	case !found:
		fmt.Fprintf(w, "Last fetch:\tnever\n")
	case run.Succeeded():
		fmt.Fprintf(w, "Last fetch:\t%s, %d ranked matches, %d new\n", formatTime(run.FinishedAt), run.Fetched, run.Inserted)
	default:
		fmt.Fprintf(w, "Last fetch:\t%s, failed: %s\n", formatTime(run.FinishedAt), run.Error)
	}

	history, err := a.store.GetHistory(ctx, 0)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Fprintf(w, "Current MMR:\t%d (match %d, %s)\n", history[0].Rating, history[0].MatchID, formatTime(history[0].Timestamp))
	}
	fmt.Fprintf(w, "Stored matches:\t%d\n", len(history))

	return w.Flush()
}

func describeToken(token string, now time.Time) string {
	if token == "" {
		return "no saved token"
	}
	info, err := auth.InspectToken(token)
	if err != nil {
		return "saved token is unreadable"
	}
	switch {
	case info.ExpiresAt.IsZero():
		return fmt.Sprintf("token for %s, no expiry", info.Subject)
	case info.Expired(now):
		return fmt.Sprintf("token for %s expired %s", info.Subject, formatTime(info.ExpiresAt.In(now.Location())))
	default:
		return fmt.Sprintf("token for %s valid until %s", info.Subject, formatTime(info.ExpiresAt.In(now.Location())))
	}
}

// promptCredentials asks for the username, unless given, and a password. The password is read
// without echo when stdin is a terminal.
func (a *app) promptCredentials(ctx context.Context, username string) (trackmmr.Credentials, error) {
	if username == "" {
		var err error
		if username, err = a.console.Ask(ctx, "Steam username: "); err != nil {
			return trackmmr.Credentials{}, err
		}
	}
	if username == "" {
		return trackmmr.Credentials{}, errors.New("a username is required")
	}

	var password string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		secret, err := term.ReadPassword(fd)
		fmt.Fprint(os.Stderr, "\n")
		if err != nil {
			return trackmmr.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = string(secret)
	} else {
		var err error
		if password, err = a.console.Ask(ctx, "Password: "); err != nil {
			return trackmmr.Credentials{}, err
		}
	}
	if password == "" {
		return trackmmr.Credentials{}, errors.New("a password is required")
	}

	return trackmmr.Credentials{Username: username, Password: password}, nil
}
