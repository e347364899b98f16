package engine

import (
	"context"

	"obralink/internal/authz"
	"obralink/internal/deeplink"
	"obralink/internal/domain"
	"obralink/internal/grant"
	"obralink/internal/workflow"
)

func (e Engine) adicionalStore() itemStore[domain.Adicional] {
	return itemStore[domain.Adicional]{load: e.Repo.GetAdicional, write: e.Repo.UpdateAdicional}
}

func (e Engine) ListAdicionales(ctx context.Context, g grant.Grant, params deeplink.Params) (Listing[domain.Adicional], error) {
	if err := checkGrant(g); err != nil {
		return Listing[domain.Adicional]{}, err
	}
	all, err := e.Repo.ListAdicionales(ctx, g.ProjectID)
	if err != nil {
		return Listing[domain.Adicional]{}, err
	}
	return list(g, domain.KindAdicional, all, params), nil
}

func (e Engine) GetAdicional(ctx context.Context, g grant.Grant, id int64) (domain.Adicional, error) {
	if err := checkGrant(g); err != nil {
		return domain.Adicional{}, err
	}
	a, err := e.Repo.GetAdicional(ctx, nil, g.ProjectID, id)
	if err != nil {
		return domain.Adicional{}, err
	}
	return detail(g, domain.KindAdicional, a)
}

func (e Engine) CreateAdicional(ctx context.Context, g grant.Grant, n workflow.NewAdicional) (domain.Adicional, error) {
	ad, notes, err := func() (domain.Adicional, []domain.Notification, error) {
		if err := checkGrant(g); err != nil {
			return domain.Adicional{}, nil, err
		}
		n.ProjectID = g.ProjectID
		if err := n.Validate(); err != nil {
			return domain.Adicional{}, nil, err
		}
		if err := authz.RequireSession(g, domain.RoleContractor); err != nil {
			return domain.Adicional{}, nil, err
		}
		a := workflow.ActorOf(g)
		ad, err := workflow.CreateAdicional(n, a, e.now())
		if err != nil {
			return domain.Adicional{}, nil, err
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return domain.Adicional{}, nil, err
		}
		defer tx.Rollback()
		if ad.ID, err = e.Repo.InsertAdicional(ctx, tx, ad); err != nil {
			return domain.Adicional{}, nil, err
		}
		ad.Version = 1
		note, err := e.created(ctx, tx, ad, a, string(ad.Status), map[string]any{"title": ad.Title, "presented_amount": ad.PresentedAmount})
		if err != nil {
			return domain.Adicional{}, nil, err
		}
		return ad, []domain.Notification{note}, tx.Commit()
	}()
	e.observe(ctx, domain.KindAdicional, "create", ad.ID, err)
	if err != nil {
		return domain.Adicional{}, err
	}
	e.dispatch(ctx, notes)
	return ad, nil
}

// ApproveAdicional resolves an adicional. A nil amount approves the
// presented amount.
func (e Engine) ApproveAdicional(ctx context.Context, g grant.Grant, id int64, amount *int64) (domain.Adicional, error) {
	return transition(ctx, e, g, domain.KindAdicional, "approve", id, workflow.Approve{Amount: amount}, e.adicionalStore())
}

func (e Engine) RejectAdicional(ctx context.Context, g grant.Grant, id int64, notes string) (domain.Adicional, error) {
	return transition(ctx, e, g, domain.KindAdicional, "reject", id, workflow.Reject{Notes: notes}, e.adicionalStore())
}
