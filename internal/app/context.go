// Package app wires a workspace into a ready engine for the CLI and the
// server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"obralink/internal/config"
	"obralink/internal/db"
	"obralink/internal/domain"
	"obralink/internal/engine"
	"obralink/internal/grant"
	"obralink/internal/identity"
	"obralink/internal/metrics"
	"obralink/internal/migrate"
	"obralink/internal/notify"
)

type Options struct {
	Workspace string
	Logger    *slog.Logger
	// Quiet skips notification sinks. Read-only commands use it.
	Quiet bool
}

// Env is an opened workspace. Close it to drain pending notifications.
type Env struct {
	DB      *sql.DB
	Config  *config.Config
	Engine  engine.Engine
	Metrics *metrics.Metrics
	closers []io.Closer
}

// Open migrates the workspace database, loads obralink.yml and assembles the
// engine with its notification sinks.
func Open(ctx context.Context, opts Options) (*Env, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.Load(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	env := &Env{DB: conn, Config: cfg, Metrics: metrics.New()}
	env.Engine = engine.New(conn, cfg)
	env.Engine.Logger = logger
	env.Engine.Metrics = env.Metrics
	if !opts.Quiet {
		d, closer, err := notify.FromConfig(cfg.Notifications, logger, env.Metrics)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("notifications: %w", err)
		}
		env.Engine.Notifier = d
		env.closers = append(env.closers, closer)
	}
	return env, nil
}

// Close drains notification sinks before closing the database.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, e.DB.Close())
	return errors.Join(errs...)
}

// ProjectID returns override when set, otherwise the only project in the
// workspace.
func (e *Env) ProjectID(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	projects, err := e.Engine.Repo.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	switch len(projects) {
	case 0:
		return "", fmt.Errorf("no projects yet; run project create")
	case 1:
		return projects[0].ID, nil
	}
	return "", fmt.Errorf("%d projects in workspace; use --project", len(projects))
}

// Session resolves the grant of a locally trusted account. The CLI runs on
// the operator's machine, so the account is taken at its word.
func (e *Env) Session(ctx context.Context, projectID, account string, role domain.Role) (grant.Grant, error) {
	if account == "" {
		return grant.Grant{}, fmt.Errorf("%w: --account required", domain.ErrUnauthorized)
	}
	return e.Engine.ResolveGrant(ctx, &identity.Session{AccountID: account, ActiveRole: role}, nil, projectID)
}
