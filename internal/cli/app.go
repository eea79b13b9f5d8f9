// Package cli is the interactive front end: a small REPL over the session,
// reconciler and auth layers. The loop itself never touches the store or the
// network directly.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/hisname/photuris/internal/auth"
	"github.com/hisname/photuris/internal/config"
	"github.com/hisname/photuris/internal/credentials"
	"github.com/hisname/photuris/internal/filex"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/migration"
	"github.com/hisname/photuris/internal/reconcile"
	"github.com/hisname/photuris/internal/session"
	"github.com/hisname/photuris/internal/store"
	"github.com/hisname/photuris/internal/tasks"
)

type App struct {
	cfg    *config.Config
	log    logging.Logger
	layout filex.Layout

	creds    credentials.Store
	registry *store.Registry
	auth     *auth.Authenticator
	coord    *tasks.Coordinator

	session    *session.Session
	reconciler *reconcile.Reconciler

	reader *bufio.Reader
}

// NewApp wires the application together and runs the one-shot storage
// migration before anything opens the legacy paths.
func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	layout := filex.Layout{DataDir: cfg.DataDir}
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	creds, err := credentials.NewFileStore(layout.CredentialsDir())
	if err != nil {
		return nil, err
	}

	registry, err := store.OpenRegistry(ctx, layout.RegistryDatabase())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	// No session is open yet, so there are no handles to release.
	migrator := migration.New(layout, creds, registry.Accounts, nil, log)
	if err := migrator.Migrate(ctx); err != nil {
		registry.Close()
		return nil, fmt.Errorf("storage migration: %w", err)
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		layout:   layout,
		creds:    creds,
		registry: registry,
		auth:     auth.New(layout, creds, registry.Accounts, cfg.HTTPTimeout, log),
		coord:    tasks.NewCoordinator(cfg.Workers, log),
		reader:   bufio.NewReader(os.Stdin),
	}
	return a, nil
}

// openActiveSession opens a session for the registry's active account. A
// registry without an active account is not an error; the user just is not
// signed in yet.
func (a *App) openActiveSession(ctx context.Context) error {
	account, err := a.registry.Accounts.Active(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s, err := session.Open(ctx, a.layout, account, a.creds, a.log, session.Options{HTTPTimeout: a.cfg.HTTPTimeout})
	if err != nil {
		return err
	}
	a.session = s

	scheduler := reconcile.NewRetryScheduler(a.coord, s.API, s.Cache.Bills, a.log)
	a.reconciler = reconcile.New(s.API, s.Cache, scheduler, a.log)
	return nil
}

func (a *App) closeSession() {
	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil {
		a.log.Warn(context.Background(), "session close failed", "err", err)
	}
	a.session = nil
	a.reconciler = nil
}

func (a *App) isSignedIn() bool {
	return a.session != nil
}

// reportStatus prints the latest failure message published by the
// reconciler, if any.
func (a *App) reportStatus() {
	if a.reconciler == nil {
		return
	}
	if msg, ok := a.reconciler.Status().Get(); ok {
		fmt.Println(msg)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if err := a.openActiveSession(ctx); err != nil {
		a.log.Warn(ctx, "could not open active session", "err", err)
	}
	a.Root(ctx)
}

// Close releases the session, the worker pool and the registry.
func (a *App) Close() {
	a.closeSession()
	a.coord.Close()
	if err := a.registry.Close(); err != nil {
		a.log.Warn(context.Background(), "registry close failed", "err", err)
	}
}
