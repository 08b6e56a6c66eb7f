package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readCredentials() (models.Credentials, error) {
	login, err := getSimpleText(a.reader, "Enter login", a.out)
	if err != nil {
		return models.Credentials{}, err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	defer common.WipeByteArray(password)

	return models.Credentials{Login: login, Password: string(password)}, nil
}

// Register prompts for a login and a password typed twice and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	creds, err := a.readCredentials()
	if err != nil {
		return err
	}

	repeat, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(repeat)

	if err := a.flow.Register(ctx, creds, string(repeat)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account created, you can log in now")
	return nil
}

// Login prompts for credentials and, when the server asks for it, runs the
// TOTP challenge right away. Leaving the challenge logs out.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return client.InvalidOperation("already logged in")
	}

	creds, err := a.readCredentials()
	if err != nil {
		return err
	}

	res, err := a.flow.Login(ctx, creds)
	if err != nil {
		return err
	}

	if res.TOTPRequired {
		return a.challenge(ctx)
	}
	a.enterAccount(ctx)
	return nil
}

func (a *App) challenge(ctx context.Context) error {
	err := a.promptCode(ctx, a.flow.ChallengeEntry(), "Enter the 6-digit code from your authenticator app")
	if err == nil {
		a.enterAccount(ctx)
		return nil
	}

	if lerr := a.flow.Logout(ctx); lerr != nil {
		a.log.Warn(ctx, "logout after abandoned challenge failed", "error", lerr)
	}
	if errors.Is(err, errCancelled) {
		fmt.Fprintln(a.out, "Login cancelled")
		return nil
	}
	return err
}

// enterAccount refreshes the profile and the session list, as every entry
// into the account view does. Failures go to the banner.
func (a *App) enterAccount(ctx context.Context) {
	p, err := a.account.Load(ctx)
	if err != nil {
		a.report(ctx, err)
		return
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", p.Username)

	if err := a.sessions.Refresh(ctx); err != nil {
		a.report(ctx, err)
	}
}

// Logout forgets the token and everything loaded for the user.
func (a *App) Logout(ctx context.Context) error {
	if err := a.flow.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return client.ErrUnauthenticated
	}
	return nil
}
