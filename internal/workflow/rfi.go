package workflow

import (
	"slices"
	"strings"
	"time"

	"obralink/internal/domain"
)

const (
	EventRFIResponded = "rfi.responded"
	EventRFIForwarded = "rfi.forwarded"
)

type NewRFI struct {
	ProjectID   string
	Title       string
	Description string
	Urgency     domain.Urgency
	DueDate     *time.Time
}

func (n NewRFI) Validate() error {
	if blank(n.Title) {
		return required("title")
	}
	if n.Urgency != "" && !n.Urgency.Valid() {
		return domain.ValidationError{Field: "urgency", Reason: "must be normal, urgente or muy_urgente"}
	}
	return nil
}

// CreateRFI builds a new pending RFI. Either side of the project may raise one.
func CreateRFI(n NewRFI, a Actor, now time.Time) (domain.RFI, error) {
	if err := n.Validate(); err != nil {
		return domain.RFI{}, err
	}
	if err := requireRole(a, domain.RoleContractor, domain.RoleMandante); err != nil {
		return domain.RFI{}, err
	}
	urgency := n.Urgency
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}
	return domain.RFI{
		ProjectID:   n.ProjectID,
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Status:      domain.RFIPendiente,
		Urgency:     urgency,
		DueDate:     n.DueDate,
		CreatedBy:   domain.Originator{Subject: a.Subject, Role: a.Role},
		CreatedAt:   now.UTC(),
	}, nil
}

// Respond answers a pending RFI. Only the mandante answers.
type Respond struct {
	Text string
}

func (c Respond) Validate() error {
	if blank(c.Text) {
		return required("response")
	}
	return nil
}

func (c Respond) Apply(r domain.RFI, a Actor, now time.Time) (domain.RFI, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return r, nil, err
	}
	if err := requireRole(a, domain.RoleMandante); err != nil {
		return r, nil, err
	}
	if r.Status != domain.RFIPendiente {
		return r, nil, invalid(domain.KindRFI, r.ID, string(r.Status), "respond")
	}
	ts := now.UTC()
	r.Response = c.Text
	r.Status = domain.RFIRespondido
	r.RespondedAt = &ts
	r.RespondedBy = a.Subject

	n := notification(EventRFIResponded, r, a, string(r.Status))
	n.Recipient = respondRecipient(r)
	n.Payload["title"] = r.Title
	n.Payload["response"] = r.Response
	return r, []domain.Notification{n}, nil
}

// respondRecipient is the contractor who raised r, or the contractor side
// when the mandante raised it.
func respondRecipient(r domain.RFI) string {
	if r.CreatedBy.Role == domain.RoleContractor && r.CreatedBy.Subject != "" {
		return r.CreatedBy.Subject
	}
	return string(domain.RoleContractor)
}

// Forward sends a pending RFI to specialists. The status does not change.
type Forward struct {
	Recipients []string
}

func (c Forward) Validate() error {
	if len(c.Recipients) == 0 {
		return required("recipients")
	}
	for _, rcpt := range c.Recipients {
		if blank(rcpt) {
			return domain.ValidationError{Field: "recipients", Reason: "must not contain empty entries"}
		}
	}
	return nil
}

func (c Forward) Apply(r domain.RFI, a Actor, now time.Time) (domain.RFI, []domain.Notification, error) {
	if err := c.Validate(); err != nil {
		return r, nil, err
	}
	if err := requireRole(a, domain.RoleContractor, domain.RoleMandante); err != nil {
		return r, nil, err
	}
	if r.Status != domain.RFIPendiente {
		return r, nil, invalid(domain.KindRFI, r.ID, string(r.Status), "forward")
	}
	ts := now.UTC()
	forwards := append([]domain.RFIForward(nil), r.Forwards...)
	var added []string
	for _, raw := range c.Recipients {
		rcpt := strings.TrimSpace(raw)
		if r.ForwardedTo(rcpt) || slices.Contains(added, rcpt) {
			continue
		}
		forwards = append(forwards, domain.RFIForward{Recipient: rcpt, ForwardedAt: ts})
		added = append(added, rcpt)
	}
	if len(added) == 0 {
		return r, nil, domain.ValidationError{Field: "recipients", Reason: "all recipients already received this RFI"}
	}
	r.Forwards = forwards

	notes := make([]domain.Notification, 0, len(added))
	for _, rcpt := range added {
		n := notification(EventRFIForwarded, r, a, string(r.Status))
		n.Recipient = rcpt
		n.Payload["title"] = r.Title
		n.Payload["urgency"] = string(r.Urgency)
		notes = append(notes, n)
	}
	return r, notes, nil
}
