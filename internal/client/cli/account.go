package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/client/services"
	"github.com/dmitrijs2005/bezrook/internal/filex"
)

const startTimeLayout = "2006-01-02 15:04"

// Whoami reloads and prints the profile.
func (a *App) Whoami(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	p, err := a.account.Load(ctx)
	if err != nil {
		return err
	}

	totp := "disabled (type 'totp' to enable)"
	if p.TOTPEnabled {
		totp = "enabled"
	}
	fmt.Fprintf(a.out, "Login:        %s\n", p.Username)
	fmt.Fprintf(a.out, "Member since: %s\n", p.SignupDate)
	fmt.Fprintf(a.out, "Two-factor:   %s\n", totp)
	return nil
}

// Sessions refreshes and prints the session list.
func (a *App) Sessions(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.sessions.Refresh(ctx); err != nil {
		return err
	}
	a.printSessions()
	return nil
}

func (a *App) printSessions() {
	list := a.sessions.Sessions()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No active sessions")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEVICE\tSTARTED\t")
	for _, s := range list {
		started := "-"
		if !s.StartTime.IsZero() {
			started = s.StartTime.Format(startTimeLayout)
		}
		mark := ""
		if s.IsCurrent {
			mark = "(this device)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Device, started, mark)
	}
	_ = w.Flush()
}

// Revoke terminates another session and prints the refreshed list.
func (a *App) Revoke(ctx context.Context, id string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.sessions.Revoke(ctx, models.SessionID(id)); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Session %s terminated\n", id)
	a.printSessions()
	return nil
}

// EnableTOTP runs the enrollment: show the secret, optionally export the
// QR code, then confirm with a code from the authenticator app.
func (a *App) EnableTOTP(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if _, err := a.account.Load(ctx); err != nil {
		return err
	}
	if !a.account.CanEnrollTOTP() {
		return client.InvalidOperation("TOTP is already enabled")
	}

	a.enrollment = services.NewEnrollmentFlow(a.api, a.account)
	if err := a.enrollment.Start(ctx); err != nil {
		return err
	}

	err := a.confirmEnrollment(ctx)
	if err == nil {
		fmt.Fprintln(a.out, "TOTP enabled")
		return nil
	}

	a.enrollment.Cancel()
	if errors.Is(err, errCancelled) {
		fmt.Fprintln(a.out, "TOTP setup cancelled")
		return nil
	}
	return err
}

func (a *App) confirmEnrollment(ctx context.Context) error {
	e, ok := a.enrollment.Enrollment()
	if !ok {
		return client.InvalidOperation("enrollment was cancelled")
	}
	fmt.Fprintf(a.out, "Add this secret to your authenticator app:\n  %s\n", e.Secret)

	path, err := getSimpleText(a.reader, "Save the QR code as PNG (file path, empty to skip, cancel to stop)", a.out)
	if err != nil {
		return err
	}
	switch path {
	case "cancel":
		return errCancelled
	case "":
	default:
		if err := saveQR(e, path); err != nil {
			a.report(ctx, err)
		} else {
			fmt.Fprintf(a.out, "QR code saved to %s\n", path)
		}
	}

	ctrl, err := a.enrollment.ProceedToVerify()
	if err != nil {
		return err
	}
	return a.promptCode(ctx, ctrl, "Enter the current code to confirm")
}

func saveQR(e models.TOTPEnrollment, path string) error {
	img, err := e.QRImage()
	if err != nil {
		return fmt.Errorf("save qr code: %w", err)
	}
	if err := filex.WritePrivate(path, img); err != nil {
		return fmt.Errorf("save qr code: %w", err)
	}
	return nil
}
