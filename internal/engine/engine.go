package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"obralink/internal/authz"
	"obralink/internal/config"
	"obralink/internal/deeplink"
	"obralink/internal/domain"
	"obralink/internal/events"
	"obralink/internal/grant"
	"obralink/internal/identity"
	"obralink/internal/metrics"
	"obralink/internal/notify"
	"obralink/internal/repo"
	"obralink/internal/workflow"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Notifier notify.Dispatcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	// NewRef mints access references for submitted payments.
	NewRef func() string
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
		NewRef: uuid.NewString,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// Resolver returns the identity resolver backed by the store.
func (e Engine) Resolver() identity.Resolver {
	return identity.Resolver{Members: e.Repo, Now: e.now}
}

// ResolveGrant builds the grant for a request, preferring a live session.
func (e Engine) ResolveGrant(ctx context.Context, s *identity.Session, stored *grant.Grant, projectID string) (grant.Grant, error) {
	g, err := e.Resolver().Resolve(ctx, s, stored, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return grant.Grant{}, fmt.Errorf("%w: unknown project %s", domain.ErrUnauthorized, projectID)
	}
	return g, err
}

// Listing is a filtered item list plus the deep-linked item to open, if any.
type Listing[T domain.Item] struct {
	Items    []T
	AutoOpen *T
}

func list[T domain.Item](g grant.Grant, kind domain.Kind, all []T, params deeplink.Params) Listing[T] {
	visible := authz.Filter(g, kind, all)
	out := Listing[T]{Items: visible}
	if item, ok := deeplink.Resolve(g, deeplink.Target(g, params, kind), kind, visible); ok {
		out.AutoOpen = &item
	}
	return out
}

// detail returns the item only when it would appear in the grant's list.
func detail[T domain.Item](g grant.Grant, kind domain.Kind, item T) (T, error) {
	if visible := authz.Filter(g, kind, []T{item}); len(visible) == 1 {
		return visible[0], nil
	}
	var zero T
	return zero, fmt.Errorf("%s %d: %w", kind, item.ItemID(), repo.ErrNotFound)
}

func checkGrant(g grant.Grant) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return nil
}

type command[T domain.Item] interface {
	Validate() error
	Apply(item T, a workflow.Actor, now time.Time) (T, []domain.Notification, error)
}

type itemStore[T domain.Item] struct {
	load  func(ctx context.Context, tx *sql.Tx, projectID string, id int64) (T, error)
	write func(ctx context.Context, tx *sql.Tx, prev, next T) error
}

// transition runs one action on one item. Field validation happens before
// the store is touched; the write is conditional on the status and version
// that were read, and its audit events commit with it. Notifications go out
// only after the commit.
func transition[T domain.Item](ctx context.Context, e Engine, g grant.Grant, kind domain.Kind, action string, id int64, cmd command[T], store itemStore[T]) (T, error) {
	var zero T
	next, notes, err := func() (T, []domain.Notification, error) {
		if err := checkGrant(g); err != nil {
			return zero, nil, err
		}
		if err := cmd.Validate(); err != nil {
			return zero, nil, err
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return zero, nil, err
		}
		defer tx.Rollback()
		prev, err := store.load(ctx, tx, g.ProjectID, id)
		if err != nil {
			return zero, nil, err
		}
		if err := authz.Authorize(g, kind, prev); err != nil {
			return zero, nil, err
		}
		now := e.now()
		next, notes, err := cmd.Apply(prev, workflow.ActorOf(g), now)
		if err != nil {
			return zero, nil, err
		}
		if err := store.write(ctx, tx, prev, next); err != nil {
			return zero, nil, err
		}
		if next, err = store.load(ctx, tx, g.ProjectID, id); err != nil {
			return zero, nil, err
		}
		if err := e.appendAll(ctx, tx, kind, action, next, g.Subject, notes); err != nil {
			return zero, nil, err
		}
		if err := tx.Commit(); err != nil {
			return zero, nil, err
		}
		return next, notes, nil
	}()
	e.observe(ctx, kind, action, id, err)
	if err != nil {
		return zero, err
	}
	e.dispatch(ctx, notes)
	return next, nil
}

func (e Engine) appendAll(ctx context.Context, tx *sql.Tx, kind domain.Kind, action string, item domain.Item, actor string, notes []domain.Notification) error {
	if len(notes) == 0 {
		typ := fmt.Sprintf("%s.%s", eventPrefix(kind), action)
		return e.events().Append(ctx, tx, typ, item.ItemProjectID(), kind, item.ItemID(), actor, nil)
	}
	for _, n := range notes {
		if err := e.events().AppendNotification(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

func eventPrefix(kind domain.Kind) string {
	if kind == domain.KindPayment {
		return "pago"
	}
	return string(kind)
}

func (e Engine) observe(ctx context.Context, kind domain.Kind, action string, id int64, err error) {
	outcome := outcomeOf(err)
	e.Metrics.Transition(string(kind), action, outcome)
	if err != nil {
		e.logger().DebugContext(ctx, "transition refused",
			slog.String("kind", string(kind)),
			slog.String("action", action),
			slog.Int64("item", id),
			slog.String("outcome", outcome),
			slog.Any("err", err),
		)
	}
}

func outcomeOf(err error) string {
	var verr domain.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid_input"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, repo.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// dispatch hands committed notifications to the notifier. Failures are
// logged and counted only.
func (e Engine) dispatch(ctx context.Context, notes []domain.Notification) {
	if e.Notifier == nil {
		return
	}
	for _, n := range notes {
		if err := e.Notifier.Notify(ctx, n); err != nil {
			e.Metrics.Notification("dispatch", "error")
			e.logger().WarnContext(ctx, "notification failed",
				slog.String("type", n.Type),
				slog.Int64("item", n.ItemID),
				slog.Any("err", err),
			)
		}
	}
}

// created records a newly inserted item and notifies the other side.
func (e Engine) created(ctx context.Context, tx *sql.Tx, item domain.Item, a workflow.Actor, status string, payload map[string]any) (domain.Notification, error) {
	n := domain.Notification{
		Type:      eventPrefix(item.ItemKind()) + ".created",
		ProjectID: item.ItemProjectID(),
		Kind:      item.ItemKind(),
		ItemID:    item.ItemID(),
		Actor:     a.Subject,
		Recipient: string(counterpart(a.Role)),
		Status:    status,
		Payload:   payload,
	}
	return n, e.events().AppendNotification(ctx, tx, n)
}

func counterpart(r domain.Role) domain.Role {
	if r == domain.RoleMandante {
		return domain.RoleContractor
	}
	return domain.RoleMandante
}

// CreateProjectOptions are parameters for creating a project.
type CreateProjectOptions struct {
	ID              string
	Name            string
	Currency        domain.Currency
	ContractorOrgID string
	MandanteOrgID   string
	ActorID         string
}

func (e Engine) CreateProject(ctx context.Context, opts CreateProjectOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return domain.Project{}, domain.ValidationError{Field: "id", Reason: "is required"}
	}
	if opts.ContractorOrgID == "" || opts.MandanteOrgID == "" {
		return domain.Project{}, domain.ValidationError{Field: "organizations", Reason: "contractor and mandante organizations are required"}
	}
	if opts.ContractorOrgID == opts.MandanteOrgID {
		return domain.Project{}, domain.ValidationError{Field: "organizations", Reason: "contractor and mandante must differ"}
	}
	if opts.Currency == "" {
		opts.Currency = domain.CurrencyCLP
	}
	if !opts.Currency.Valid() {
		return domain.Project{}, domain.ValidationError{Field: "currency", Reason: "must be CLP, UF or USD"}
	}
	if opts.Name == "" {
		opts.Name = opts.ID
	}
	now := e.now().UTC()
	p := domain.Project{
		ID:              opts.ID,
		Name:            opts.Name,
		Currency:        opts.Currency,
		ContractorOrgID: opts.ContractorOrgID,
		MandanteOrgID:   opts.MandanteOrgID,
		CreatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	for _, org := range []string{p.ContractorOrgID, p.MandanteOrgID} {
		if err := e.Repo.EnsureOrg(ctx, tx, domain.Organization{ID: org, CreatedAt: now}); err != nil {
			return domain.Project{}, fmt.Errorf("ensure org: %w", err)
		}
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.events().Append(ctx, tx, "project.created", p.ID, "project", 0, opts.ActorID, events.Payload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// AddMember puts an account in one side of a project.
func (e Engine) AddMember(ctx context.Context, projectID string, role domain.Role, accountID, actorID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ValidationError{Field: "account", Reason: "is required"}
	}
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	var org string
	switch role {
	case domain.RoleContractor:
		org = p.ContractorOrgID
	case domain.RoleMandante:
		org = p.MandanteOrgID
	default:
		return domain.ValidationError{Field: "role", Reason: "must be contractor or mandante"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.AddMember(ctx, tx, org, accountID, e.now()); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, "member.added", projectID, "project", 0, actorID, events.Payload{"account": accountID, "role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

// AuditLog returns the events of the grant's project. Only authenticated
// sessions read it.
func (e Engine) AuditLog(ctx context.Context, g grant.Grant, f repo.EventFilter) ([]domain.Event, error) {
	if err := checkGrant(g); err != nil {
		return nil, err
	}
	if err := authz.RequireSession(g, ""); err != nil {
		return nil, err
	}
	f.ProjectID = g.ProjectID
	return e.Repo.LatestEvents(ctx, f)
}
