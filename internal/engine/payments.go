package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"obralink/internal/authz"
	"obralink/internal/domain"
	"obralink/internal/grant"
	"obralink/internal/identity"
	"obralink/internal/repo"
	"obralink/internal/workflow"
)

// paymentStore also issues the access reference a submission carries, in the
// same transaction as the status change.
func (e Engine) paymentStore() itemStore[domain.PaymentSubmission] {
	return itemStore[domain.PaymentSubmission]{
		load: e.Repo.GetPayment,
		write: func(ctx context.Context, tx *sql.Tx, prev, next domain.PaymentSubmission) error {
			if err := e.Repo.UpdatePayment(ctx, tx, prev, next, e.now()); err != nil {
				return err
			}
			if next.AccessRef == "" || next.AccessRef == prev.AccessRef {
				return nil
			}
			return e.Repo.InsertAccessRef(ctx, tx, domain.AccessRef{
				Ref:       next.AccessRef,
				ProjectID: next.ProjectID,
				Kind:      domain.KindPayment,
				ItemID:    next.ID,
				Role:      domain.RoleMandante,
				CreatedAt: e.now().UTC(),
			})
		},
	}
}

// ListPayments returns the payment submissions visible to g. Among link
// grants only general mandante links and pago-only links see payments.
func (e Engine) ListPayments(ctx context.Context, g grant.Grant) ([]domain.PaymentSubmission, error) {
	if err := checkGrant(g); err != nil {
		return nil, err
	}
	all, err := e.Repo.ListPayments(ctx, g.ProjectID)
	if err != nil {
		return nil, err
	}
	return authz.Filter(g, domain.KindPayment, all), nil
}

func (e Engine) GetPayment(ctx context.Context, g grant.Grant, id int64) (domain.PaymentSubmission, error) {
	if err := checkGrant(g); err != nil {
		return domain.PaymentSubmission{}, err
	}
	p, err := e.Repo.GetPayment(ctx, nil, g.ProjectID, id)
	if err != nil {
		return domain.PaymentSubmission{}, err
	}
	return detail(g, domain.KindPayment, p)
}

// CreatePayment registers a payment submission. Zero approvals and a nil
// document list take the configured defaults.
func (e Engine) CreatePayment(ctx context.Context, g grant.Grant, n workflow.NewPayment) (domain.PaymentSubmission, error) {
	if n.ApprovalsRequired == 0 {
		n.ApprovalsRequired = e.Config.Payments.ApprovalsRequired
	}
	if n.RequiredDocs == nil {
		n.RequiredDocs = e.Config.Payments.RequiredDocuments
	}
	p, notes, err := func() (domain.PaymentSubmission, []domain.Notification, error) {
		if err := checkGrant(g); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		n.ProjectID = g.ProjectID
		if err := n.Validate(); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		if err := authz.RequireSession(g, domain.RoleContractor); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		a := workflow.ActorOf(g)
		p, err := workflow.CreatePayment(n, a, e.now())
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		defer tx.Rollback()
		if p.ID, err = e.Repo.InsertPayment(ctx, tx, p); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		p.Version = 1
		note, err := e.created(ctx, tx, p, a, string(p.Status), map[string]any{"period": p.Period, "total_amount": p.TotalAmount})
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		if p.Status == domain.PaymentProgramado {
			// nothing to review until the scheduler opens it
			return p, nil, tx.Commit()
		}
		return p, []domain.Notification{note}, tx.Commit()
	}()
	e.observe(ctx, domain.KindPayment, "create", p.ID, err)
	if err != nil {
		return domain.PaymentSubmission{}, err
	}
	e.dispatch(ctx, notes)
	return p, nil
}

func (e Engine) MarkPaymentDocument(ctx context.Context, g grant.Grant, id int64, doc string, present bool) (domain.PaymentSubmission, error) {
	return transition(ctx, e, g, domain.KindPayment, "document", id, workflow.MarkDocument{Doc: doc, Present: present}, e.paymentStore())
}

// SubmitPayment sends the package to the mandante with a fresh access
// reference.
func (e Engine) SubmitPayment(ctx context.Context, g grant.Grant, id int64) (domain.PaymentSubmission, error) {
	return transition(ctx, e, g, domain.KindPayment, "submit", id, workflow.Submit{AccessRef: e.NewRef()}, e.paymentStore())
}

// ApprovePayment records one mandante signoff.
func (e Engine) ApprovePayment(ctx context.Context, g grant.Grant, id int64) (domain.PaymentSubmission, error) {
	return transition(ctx, e, g, domain.KindPayment, "approve", id, workflow.RecordApproval{}, e.paymentStore())
}

func (e Engine) RejectPayment(ctx context.Context, g grant.Grant, id int64, notes string) (domain.PaymentSubmission, error) {
	return transition(ctx, e, g, domain.KindPayment, "reject", id, workflow.RejectPayment{Notes: notes}, e.paymentStore())
}

// OpenPayment moves a scheduled payment to Pendiente. It is the scheduler's
// entry point and takes no grant.
func (e Engine) OpenPayment(ctx context.Context, projectID string, id int64, scheduler string) (domain.PaymentSubmission, error) {
	next, notes, err := func() (domain.PaymentSubmission, []domain.Notification, error) {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		defer tx.Rollback()
		prev, err := e.Repo.GetPayment(ctx, tx, projectID, id)
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		next, notes, err := workflow.Open(prev, scheduler)
		if err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		if err := e.Repo.UpdatePayment(ctx, tx, prev, next, e.now()); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		if next, err = e.Repo.GetPayment(ctx, tx, projectID, id); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		if err := e.appendAll(ctx, tx, domain.KindPayment, "open", next, scheduler, notes); err != nil {
			return domain.PaymentSubmission{}, nil, err
		}
		return next, notes, tx.Commit()
	}()
	e.observe(ctx, domain.KindPayment, "open", id, err)
	if err != nil {
		return domain.PaymentSubmission{}, err
	}
	e.dispatch(ctx, notes)
	return next, nil
}

// OpenScheduled opens every Programado payment and reports how many moved.
// Failures on one payment do not stop the others.
func (e Engine) OpenScheduled(ctx context.Context, scheduler string) (int, error) {
	due, err := e.Repo.ListScheduledPayments(ctx)
	if err != nil {
		return 0, err
	}
	opened := 0
	for _, p := range due {
		if _, err := e.OpenPayment(ctx, p.ProjectID, p.ID, scheduler); err != nil {
			e.logger().WarnContext(ctx, "open scheduled payment", slog.Int64("payment", p.ID), slog.Any("err", err))
			continue
		}
		opened++
	}
	return opened, nil
}

// RedeemAccessRef consumes a payment access reference on behalf of an
// authenticated account and returns a mandante link grant limited to the
// referenced payment. The account must hold the mandante role on the
// project; a reference presented by anyone else stays unconsumed.
func (e Engine) RedeemAccessRef(ctx context.Context, ref string, s identity.Session) (grant.Grant, error) {
	if s.AccountID == "" {
		return grant.Grant{}, fmt.Errorf("%w: authenticated session required", domain.ErrUnauthorized)
	}
	a, err := e.Repo.GetAccessRef(ctx, nil, ref)
	if errors.Is(err, repo.ErrNotFound) {
		return grant.Grant{}, fmt.Errorf("%w: unknown access reference", domain.ErrUnauthorized)
	}
	if err != nil {
		return grant.Grant{}, err
	}
	s.ActiveRole = a.Role
	session, err := e.ResolveGrant(ctx, &s, nil, a.ProjectID)
	if err != nil {
		return grant.Grant{}, fmt.Errorf("%w: %v", domain.ErrForbidden, err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return grant.Grant{}, err
	}
	defer tx.Rollback()
	if a, err = e.Repo.ConsumeAccessRef(ctx, tx, ref, e.now()); err != nil {
		return grant.Grant{}, err
	}
	g := grant.Grant{
		ProjectID:              a.ProjectID,
		ActorRole:              session.ActorRole,
		Scope:                  grant.ScopePagoOnly,
		AuthorizedRFIIDs:       []int64{},
		AuthorizedAdicionalIDs: []int64{},
		AuthorizedPagoIDs:      []int64{a.ItemID},
		IssuedAt:               e.now().UTC(),
		Subject:                session.Subject,
		Via:                    grant.SourceLink,
	}
	if err := g.Validate(); err != nil {
		return grant.Grant{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if err := e.events().Append(ctx, tx, "access.redeemed", a.ProjectID, a.Kind, a.ItemID, session.Subject, nil); err != nil {
		return grant.Grant{}, err
	}
	return g, tx.Commit()
}
