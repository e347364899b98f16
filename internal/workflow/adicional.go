package workflow

import (
	"strings"
	"time"

	"obralink/internal/domain"
)

const (
	EventAdicionalApproved = "adicional.approved"
	EventAdicionalRejected = "adicional.rejected"
)

type NewAdicional struct {
	ProjectID       string
	Title           string
	Description     string
	Category        string
	PresentedAmount int64
}

func (n NewAdicional) Validate() error {
	if blank(n.Title) {
		return required("title")
	}
	if n.PresentedAmount <= 0 {
		return domain.ValidationError{Field: "presented_amount", Reason: "must be positive"}
	}
	return nil
}

// CreateAdicional builds a pending change order. Only the contractor presents them.
func CreateAdicional(n NewAdicional, a Actor, now time.Time) (domain.Adicional, error) {
	if err := n.Validate(); err != nil {
		return domain.Adicional{}, err
	}
	if err := requireRole(a, domain.RoleContractor); err != nil {
		return domain.Adicional{}, err
	}
	return domain.Adicional{
		ProjectID:       n.ProjectID,
		Title:           strings.TrimSpace(n.Title),
		Description:     n.Description,
		Category:        n.Category,
		PresentedAmount: n.PresentedAmount,
		Status:          domain.AdicionalPendiente,
		CreatedBy:       domain.Originator{Subject: a.Subject, Role: a.Role},
		CreatedAt:       now.UTC(),
	}, nil
}

// Approve resolves an adicional. A nil Amount approves the presented amount.
type Approve struct {
	Amount *int64
}

func (c Approve) Validate() error {
	if c.Amount != nil && *c.Amount < 0 {
		return domain.ValidationError{Field: "approved_amount", Reason: "must not be negative"}
	}
	return nil
}

func (c Approve) Apply(ad domain.Adicional, a Actor, now time.Time) (domain.Adicional, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return ad, nil, err
	}
	if err := checkResolvable(ad, a, "approve"); err != nil {
		return ad, nil, err
	}
	amount := ad.PresentedAmount
	if c.Amount != nil {
		amount = *c.Amount
	}
	ts := now.UTC()
	ad.Status = domain.AdicionalAprobado
	ad.ApprovedAmount = &amount
	ad.ResolvedBy = a.Subject
	ad.ResolvedAt = &ts

	n := notification(EventAdicionalApproved, ad, a, string(ad.Status))
	n.Recipient = ad.CreatedBy.Subject
	n.Payload["title"] = ad.Title
	n.Payload["presented_amount"] = ad.PresentedAmount
	n.Payload["approved_amount"] = amount
	return ad, []domain.Notification{n}, nil
}

// Reject resolves an adicional negatively. Notes are mandatory and stored verbatim.
type Reject struct {
	Notes string
}

func (c Reject) Validate() error {
	if blank(c.Notes) {
		return required("notes")
	}
	return nil
}

func (c Reject) Apply(ad domain.Adicional, a Actor, now time.Time) (domain.Adicional, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return ad, nil, err
	}
	if err := checkResolvable(ad, a, "reject"); err != nil {
		return ad, nil, err
	}
	ts := now.UTC()
	ad.Status = domain.AdicionalRechazado
	ad.RejectionNotes = c.Notes
	ad.ResolvedBy = a.Subject
	ad.ResolvedAt = &ts

	n := notification(EventAdicionalRejected, ad, a, string(ad.Status))
	n.Recipient = ad.CreatedBy.Subject
	n.Payload["title"] = ad.Title
	n.Payload["reason"] = ad.RejectionNotes
	return ad, []domain.Notification{n}, nil
}

func checkResolvable(ad domain.Adicional, a Actor, action string) error {
	if err := requireRole(a, domain.RoleMandante); err != nil {
		return err
	}
	switch ad.Status {
	case domain.AdicionalPendiente, domain.AdicionalEnviado:
		return nil
	}
	return invalid(domain.KindAdicional, ad.ID, string(ad.Status), action)
}
