package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/dmitrijs2005/bezrook/internal/client/banner"
	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/config"
	"github.com/dmitrijs2005/bezrook/internal/client/services"
	"github.com/dmitrijs2005/bezrook/internal/client/tokenstore"
	"github.com/dmitrijs2005/bezrook/internal/filex"
	"github.com/dmitrijs2005/bezrook/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	api        client.Client
	flow       *services.AuthFlow
	account    *services.Account
	enrollment *services.EnrollmentFlow
	sessions   *services.SessionManager
	banner     *banner.Banner
	log        logging.Logger

	db     *sql.DB
	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the token database and builds the REST client and the
// services on top of it. The caller owns the returned App and must Run it
// (Run closes the database on exit).
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	tokens := tokenstore.NewSQLite(db)
	api, err := client.NewHTTPClient(c.ServerBaseURL, tokens,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(api, tokens, banner.New(c.BannerTTL), log, os.Stdin, os.Stdout)
	a.db = db
	return a, nil
}

func newApp(api client.Client, tokens tokenstore.Store, b *banner.Banner, log logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		api:      api,
		flow:     services.NewAuthFlow(api, tokens, log),
		account:  services.NewAccount(api),
		sessions: services.NewSessionManager(api),
		banner:   b,
		log:      log,
		reader:   bufio.NewReader(in),
		out:      out,
	}
	a.flow.OnChange(a.onStateChange)
	return a
}

// onStateChange drops everything that belongs to the previous user once
// the flow leaves the authenticated area.
func (a *App) onStateChange(_, to services.State) {
	if to != services.StateLoggedOut {
		return
	}
	a.account.Clear()
	a.sessions.Clear()
	if a.enrollment != nil {
		a.enrollment.Cancel()
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)
	a.Root(ctx)
}

func (a *App) close(ctx context.Context) {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.log.Error(ctx, "error closing database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.flow.State() == services.StateAuthenticated
}

// report puts err on the banner. Nil errors are ignored.
func (a *App) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	a.log.Debug(ctx, "command failed", "error", err)
	a.banner.ShowError(err)
}

func (a *App) notice() (string, bool) {
	return a.banner.Current()
}
