package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"obralink/internal/domain"
)

const (
	EventPaymentSubmitted        = "pago.submitted"
	EventPaymentApprovalRecorded = "pago.approval_recorded"
	EventPaymentApproved         = "pago.approved"
	EventPaymentRejected         = "pago.rejected"
	EventPaymentOpened           = "pago.opened"
)

type NewPayment struct {
	ProjectID         string
	Period            string
	TotalAmount       int64
	ExpiresOn         *time.Time
	ApprovalsRequired int
	// Scheduled payments start in Programado and wait for the scheduler.
	Scheduled    bool
	RequiredDocs []string
}

func (n NewPayment) Validate() error {
	if blank(n.Period) {
		return required("period")
	}
	if n.TotalAmount <= 0 {
		return domain.ValidationError{Field: "total_amount", Reason: "must be positive"}
	}
	if n.ApprovalsRequired < 1 {
		return domain.ValidationError{Field: "approvals_required", Reason: "must be at least 1"}
	}
	return nil
}

// CreatePayment builds a payment submission for the contractor.
func CreatePayment(n NewPayment, a Actor, now time.Time) (domain.PaymentSubmission, error) {
	if err := n.Validate(); err != nil {
		return domain.PaymentSubmission{}, err
	}
	if err := requireRole(a, domain.RoleContractor); err != nil {
		return domain.PaymentSubmission{}, err
	}
	status := domain.PaymentPendiente
	if n.Scheduled {
		status = domain.PaymentProgramado
	}
	docs := make(map[string]bool, len(n.RequiredDocs))
	for _, d := range n.RequiredDocs {
		docs[d] = false
	}
	return domain.PaymentSubmission{
		ProjectID:         n.ProjectID,
		Period:            strings.TrimSpace(n.Period),
		TotalAmount:       n.TotalAmount,
		ExpiresOn:         n.ExpiresOn,
		Status:            status,
		ApprovalsRequired: n.ApprovalsRequired,
		Documents:         docs,
		CreatedBy:         domain.Originator{Subject: a.Subject, Role: a.Role},
		CreatedAt:         now.UTC(),
	}, nil
}

// Open moves a scheduled payment to Pendiente. Only the external scheduler
// calls it; no grant is involved.
func Open(p domain.PaymentSubmission, scheduler string) (domain.PaymentSubmission, []domain.Notification, error) {
	if p.Status != domain.PaymentProgramado {
		return p, nil, invalid(domain.KindPayment, p.ID, string(p.Status), "open")
	}
	p.Status = domain.PaymentPendiente
	n := notification(EventPaymentOpened, p, Actor{Subject: scheduler}, string(p.Status))
	n.Recipient = p.CreatedBy.Subject
	n.Payload["period"] = p.Period
	return p, []domain.Notification{n}, nil
}

// MarkDocument sets or clears one required-document flag.
type MarkDocument struct {
	Doc     string
	Present bool
}

func (c MarkDocument) Validate() error {
	if blank(c.Doc) {
		return required("document")
	}
	return nil
}

func (c MarkDocument) Apply(p domain.PaymentSubmission, a Actor, _ time.Time) (domain.PaymentSubmission, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return p, nil, err
	}
	if err := requireRole(a, domain.RoleContractor); err != nil {
		return p, nil, err
	}
	if p.Status != domain.PaymentPendiente {
		return p, nil, invalid(domain.KindPayment, p.ID, string(p.Status), "update documents of")
	}
	if _, ok := p.Documents[c.Doc]; !ok {
		return p, nil, domain.ValidationError{Field: "document", Reason: fmt.Sprintf("%s is not a required document", c.Doc)}
	}
	docs := make(map[string]bool, len(p.Documents))
	for k, v := range p.Documents {
		docs[k] = v
	}
	docs[c.Doc] = c.Present
	p.Documents = docs
	return p, nil, nil
}

// Submit sends a complete payment package to the mandante. AccessRef is the
// fresh single-use reference the mandante's notification points at.
type Submit struct {
	AccessRef string
}

func (c Submit) Validate() error {
	if blank(c.AccessRef) {
		return required("access_ref")
	}
	return nil
}

func (c Submit) Apply(p domain.PaymentSubmission, a Actor, now time.Time) (domain.PaymentSubmission, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return p, nil, err
	}
	if err := requireRole(a, domain.RoleContractor); err != nil {
		return p, nil, err
	}
	if p.Status != domain.PaymentPendiente {
		return p, nil, invalid(domain.KindPayment, p.ID, string(p.Status), "submit")
	}
	if missing := MissingDocuments(p); len(missing) > 0 {
		return p, nil, domain.ValidationError{Field: "documents", Reason: "missing " + strings.Join(missing, ", ")}
	}
	ts := now.UTC()
	p.Status = domain.PaymentEnviado
	p.SubmittedAt = &ts
	p.AccessRef = c.AccessRef

	n := notification(EventPaymentSubmitted, p, a, string(p.Status))
	n.Recipient = string(domain.RoleMandante)
	n.Payload["period"] = p.Period
	n.Payload["total_amount"] = p.TotalAmount
	n.AccessRef = p.AccessRef
	return p, []domain.Notification{n}, nil
}

// MissingDocuments lists unset required documents in name order.
func MissingDocuments(p domain.PaymentSubmission) []string {
	var missing []string
	for doc, ok := range p.Documents {
		if !ok {
			missing = append(missing, doc)
		}
	}
	sort.Strings(missing)
	return missing
}

// RecordApproval adds one mandante signoff. The submission becomes Aprobado
// only when the quorum is reached.
type RecordApproval struct{}

func (RecordApproval) Validate() error { return nil }

func (c RecordApproval) Apply(p domain.PaymentSubmission, a Actor, now time.Time) (domain.PaymentSubmission, []domain.Notification, error) {
	if err := checkReviewable(p, a, "approve"); err != nil {
		return p, nil, err
	}
	if p.ApprovedBy(a.Subject) {
		return p, nil, fmt.Errorf("%w: %s already approved %s %d", domain.ErrInvalidTransition, a.Subject, domain.KindPayment, p.ID)
	}
	required := p.ApprovalsRequired
	if required < 1 {
		required = 1
	}
	p.Approvers = append(append([]string(nil), p.Approvers...), a.Subject)
	p.ApprovalProgress++
	typ := EventPaymentApprovalRecorded
	if p.ApprovalProgress >= required {
		ts := now.UTC()
		p.Status = domain.PaymentAprobado
		p.ResolvedBy = a.Subject
		p.ResolvedAt = &ts
		typ = EventPaymentApproved
	}
	n := notification(typ, p, a, string(p.Status))
	n.Recipient = p.CreatedBy.Subject
	n.Payload["period"] = p.Period
	n.Payload["approval_progress"] = p.ApprovalProgress
	n.Payload["approvals_required"] = required
	return p, []domain.Notification{n}, nil
}

// RejectPayment is final regardless of how many approvals were recorded.
type RejectPayment struct {
	Notes string
}

func (RejectPayment) Validate() error { return nil }

func (c RejectPayment) Apply(p domain.PaymentSubmission, a Actor, now time.Time) (domain.PaymentSubmission, []domain.Notification, error) {
	if err := checkReviewable(p, a, "reject"); err != nil {
		return p, nil, err
	}
	ts := now.UTC()
	p.Status = domain.PaymentRechazado
	p.RejectionNotes = c.Notes
	p.ResolvedBy = a.Subject
	p.ResolvedAt = &ts

	n := notification(EventPaymentRejected, p, a, string(p.Status))
	n.Recipient = p.CreatedBy.Subject
	n.Payload["period"] = p.Period
	if c.Notes != "" {
		n.Payload["reason"] = c.Notes
	}
	return p, []domain.Notification{n}, nil
}

func checkReviewable(p domain.PaymentSubmission, a Actor, action string) error {
	if err := requireRole(a, domain.RoleMandante); err != nil {
		return err
	}
	if p.Status != domain.PaymentEnviado {
		return invalid(domain.KindPayment, p.ID, string(p.Status), action)
	}
	return nil
}
