package domain

import "time"

type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Currency        Currency  `json:"currency" enum:"CLP,UF,USD"`
	ContractorOrgID string    `json:"contractor_org_id"`
	MandanteOrgID   string    `json:"mandante_org_id"`
	CreatedAt       time.Time `json:"created_at" format:"date-time"`
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

// Item is implemented by every workflow item kind.
type Item interface {
	ItemKind() Kind
	ItemID() int64
	ItemProjectID() string
	Terminal() bool
}

// Originator identifies who raised an item.
type Originator struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

type RFIForward struct {
	Recipient   string    `json:"recipient"`
	ForwardedAt time.Time `json:"forwarded_at" format:"date-time"`
}

type RFI struct {
	ID          int64        `json:"id"`
	ProjectID   string       `json:"project_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      RFIStatus    `json:"status" enum:"Pendiente,Respondido"`
	Urgency     Urgency      `json:"urgency" enum:"normal,urgente,muy_urgente"`
	DueDate     *time.Time   `json:"due_date,omitempty" format:"date-time"`
	Response    string       `json:"response,omitempty"`
	RespondedAt *time.Time   `json:"responded_at,omitempty" format:"date-time"`
	RespondedBy string       `json:"responded_by,omitempty"`
	Forwards    []RFIForward `json:"forwards,omitempty"`
	CreatedBy   Originator   `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at" format:"date-time"`
	Version     int64        `json:"version"`
}

func (r RFI) ItemKind() Kind        { return KindRFI }
func (r RFI) ItemID() int64         { return r.ID }
func (r RFI) ItemProjectID() string { return r.ProjectID }
func (r RFI) Terminal() bool        { return r.Status.Terminal() }

// ForwardedTo reports whether recipient already received the RFI.
func (r RFI) ForwardedTo(recipient string) bool {
	for _, f := range r.Forwards {
		if f.Recipient == recipient {
			return true
		}
	}
	return false
}

type Adicional struct {
	ID              int64           `json:"id"`
	ProjectID       string          `json:"project_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Category        string          `json:"category,omitempty"`
	PresentedAmount int64           `json:"presented_amount"`
	ApprovedAmount  *int64          `json:"approved_amount,omitempty"`
	Status          AdicionalStatus `json:"status" enum:"Pendiente,Enviado,Aprobado,Rechazado"`
	RejectionNotes  string          `json:"rejection_notes,omitempty"`
	ResolvedBy      string          `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty" format:"date-time"`
	CreatedBy       Originator      `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at" format:"date-time"`
	Version         int64           `json:"version"`
}

func (a Adicional) ItemKind() Kind        { return KindAdicional }
func (a Adicional) ItemID() int64         { return a.ID }
func (a Adicional) ItemProjectID() string { return a.ProjectID }
func (a Adicional) Terminal() bool        { return a.Status.Terminal() }

type PaymentSubmission struct {
	ID                int64           `json:"id"`
	ProjectID         string          `json:"project_id"`
	Period            string          `json:"period"`
	TotalAmount       int64           `json:"total_amount"`
	ExpiresOn         *time.Time      `json:"expires_on,omitempty" format:"date-time"`
	Status            PaymentStatus   `json:"status" enum:"Programado,Pendiente,Enviado,Aprobado,Rechazado"`
	ApprovalProgress  int             `json:"approval_progress"`
	ApprovalsRequired int             `json:"approvals_required"`
	Approvers         []string        `json:"approvers,omitempty"`
	Documents         map[string]bool `json:"documents"`
	// AccessRef only travels in the submission notification to the mandante
	// side. It is never serialized with the submission.
	AccessRef      string     `json:"-"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty" format:"date-time"`
	RejectionNotes string     `json:"rejection_notes,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" format:"date-time"`
	CreatedBy      Originator `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at" format:"date-time"`
	Version        int64      `json:"version"`
}

func (p PaymentSubmission) ItemKind() Kind        { return KindPayment }
func (p PaymentSubmission) ItemID() int64         { return p.ID }
func (p PaymentSubmission) ItemProjectID() string { return p.ProjectID }
func (p PaymentSubmission) Terminal() bool        { return p.Status.Terminal() }

// ApprovedBy reports whether subject already signed off.
func (p PaymentSubmission) ApprovedBy(subject string) bool {
	for _, a := range p.Approvers {
		if a == subject {
			return true
		}
	}
	return false
}

// AccessRef is a single-use reference handed to the mandante side after a
// payment submission. The verification entry point consumes it.
type AccessRef struct {
	Ref        string     `json:"ref"`
	ProjectID  string     `json:"project_id"`
	Kind       Kind       `json:"kind"`
	ItemID     int64      `json:"item_id"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"created_at" format:"date-time"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Notification is a state-change event handed to the dispatcher after commit.
type Notification struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"project_id"`
	Kind      Kind           `json:"kind"`
	ItemID    int64          `json:"item_id"`
	Actor     string         `json:"actor"`
	Recipient string         `json:"recipient,omitempty"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	// AccessRef is delivered to the recipient but kept out of the audit log.
	AccessRef string `json:"access_ref,omitempty"`
}
