package engine

import (
	"context"

	"obralink/internal/authz"
	"obralink/internal/deeplink"
	"obralink/internal/domain"
	"obralink/internal/grant"
	"obralink/internal/workflow"
)

func (e Engine) rfiStore() itemStore[domain.RFI] {
	return itemStore[domain.RFI]{load: e.Repo.GetRFI, write: e.Repo.UpdateRFI}
}

func (e Engine) ListRFIs(ctx context.Context, g grant.Grant, params deeplink.Params) (Listing[domain.RFI], error) {
	if err := checkGrant(g); err != nil {
		return Listing[domain.RFI]{}, err
	}
	all, err := e.Repo.ListRFIs(ctx, g.ProjectID)
	if err != nil {
		return Listing[domain.RFI]{}, err
	}
	return list(g, domain.KindRFI, all, params), nil
}

func (e Engine) GetRFI(ctx context.Context, g grant.Grant, id int64) (domain.RFI, error) {
	if err := checkGrant(g); err != nil {
		return domain.RFI{}, err
	}
	r, err := e.Repo.GetRFI(ctx, nil, g.ProjectID, id)
	if err != nil {
		return domain.RFI{}, err
	}
	return detail(g, domain.KindRFI, r)
}

func (e Engine) CreateRFI(ctx context.Context, g grant.Grant, n workflow.NewRFI) (domain.RFI, error) {
	r, notes, err := func() (domain.RFI, []domain.Notification, error) {
		if err := checkGrant(g); err != nil {
			return domain.RFI{}, nil, err
		}
		n.ProjectID = g.ProjectID
		if err := n.Validate(); err != nil {
			return domain.RFI{}, nil, err
		}
		if err := authz.RequireSession(g, ""); err != nil {
			return domain.RFI{}, nil, err
		}
		a := workflow.ActorOf(g)
		r, err := workflow.CreateRFI(n, a, e.now())
		if err != nil {
			return domain.RFI{}, nil, err
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return domain.RFI{}, nil, err
		}
		defer tx.Rollback()
		if r.ID, err = e.Repo.InsertRFI(ctx, tx, r); err != nil {
			return domain.RFI{}, nil, err
		}
		r.Version = 1
		note, err := e.created(ctx, tx, r, a, string(r.Status), map[string]any{"title": r.Title, "urgency": string(r.Urgency)})
		if err != nil {
			return domain.RFI{}, nil, err
		}
		return r, []domain.Notification{note}, tx.Commit()
	}()
	e.observe(ctx, domain.KindRFI, "create", r.ID, err)
	if err != nil {
		return domain.RFI{}, err
	}
	e.dispatch(ctx, notes)
	return r, nil
}

// RespondRFI answers a pending RFI. Of concurrent responses exactly one
// commits; the others see ErrInvalidTransition.
func (e Engine) RespondRFI(ctx context.Context, g grant.Grant, id int64, text string) (domain.RFI, error) {
	return transition(ctx, e, g, domain.KindRFI, "respond", id, workflow.Respond{Text: text}, e.rfiStore())
}

func (e Engine) ForwardRFI(ctx context.Context, g grant.Grant, id int64, recipients []string) (domain.RFI, error) {
	return transition(ctx, e, g, domain.KindRFI, "forward", id, workflow.Forward{Recipients: recipients}, e.rfiStore())
}
