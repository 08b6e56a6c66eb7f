package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bezrook/internal/client/services"
)

func (a *App) getStatus() string {
	s := a.flow.State().String()
	if p, ok := a.account.Profile(); ok && a.isLoggedIn() {
		s = p.Username + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

// Root resumes a stored session, if any, and runs the REPL on the app's
// input until the user exits.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to bezrook CLI (type 'help' for commands)")

	if a.flow.Navigate(ctx, services.StateAuthenticated) == services.StateAuthenticated {
		a.enterAccount(ctx)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
