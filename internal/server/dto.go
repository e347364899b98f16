package server

import (
	"time"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

// Request payloads

type CreateRFIRequest struct {
	Title       string         `json:"title" minLength:"1"`
	Description string         `json:"description,omitempty"`
	Urgency     domain.Urgency `json:"urgency,omitempty" enum:"normal,urgente,muy_urgente"`
	DueDate     *time.Time     `json:"due_date,omitempty" format:"date-time"`
}

type RespondRFIRequest struct {
	Response string `json:"response"`
}

type ForwardRFIRequest struct {
	Recipients []string `json:"recipients"`
}

type CreateAdicionalRequest struct {
	Title           string `json:"title" minLength:"1"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	PresentedAmount int64  `json:"presented_amount"`
}

type ApproveAdicionalRequest struct {
	ApprovedAmount *int64 `json:"approved_amount,omitempty"`
}

type RejectRequest struct {
	Notes string `json:"notes"`
}

type RejectPagoRequest struct {
	Notes string `json:"notes,omitempty"`
}

type CreatePagoRequest struct {
	Period            string     `json:"period"`
	TotalAmount       int64      `json:"total_amount"`
	ExpiresOn         *time.Time `json:"expires_on,omitempty" format:"date-time"`
	ApprovalsRequired int        `json:"approvals_required,omitempty"`
	Scheduled         bool       `json:"scheduled,omitempty"`
	RequiredDocuments []string   `json:"required_documents,omitempty"`
}

type SetDocumentRequest struct {
	Present bool `json:"present"`
}

type DevSessionRequest struct {
	AccountID string      `json:"account_id" minLength:"1"`
	Role      domain.Role `json:"role,omitempty" enum:"contractor,mandante"`
}

// Responses

type RFIListResponse struct {
	Items    []domain.RFI `json:"items"`
	AutoOpen *domain.RFI  `json:"auto_open,omitempty"`
}

type AdicionalListResponse struct {
	Items    []domain.Adicional `json:"items"`
	AutoOpen *domain.Adicional  `json:"auto_open,omitempty"`
}

// PagoResponse is a submission as shown to one side, with the
// role-dependent status label.
type PagoResponse struct {
	ID                int64                `json:"id"`
	ProjectID         string               `json:"project_id"`
	Period            string               `json:"period"`
	TotalAmount       int64                `json:"total_amount"`
	ExpiresOn         *time.Time           `json:"expires_on,omitempty" format:"date-time"`
	Status            domain.PaymentStatus `json:"status" enum:"Programado,Pendiente,Enviado,Aprobado,Rechazado"`
	StatusLabel       string               `json:"status_label"`
	ApprovalProgress  int                  `json:"approval_progress"`
	ApprovalsRequired int                  `json:"approvals_required"`
	Approvers         []string             `json:"approvers,omitempty"`
	Documents         map[string]bool      `json:"documents"`
	SubmittedAt       *time.Time           `json:"submitted_at,omitempty" format:"date-time"`
	RejectionNotes    string               `json:"rejection_notes,omitempty"`
	ResolvedBy        string               `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time           `json:"resolved_at,omitempty" format:"date-time"`
	CreatedBy         domain.Originator    `json:"created_by"`
	CreatedAt         time.Time            `json:"created_at" format:"date-time"`
	Version           int64                `json:"version"`
}

type PagoListResponse struct {
	Items []PagoResponse `json:"items"`
}

type GrantResponse struct {
	Grant grant.Grant `json:"grant"`
}

type TokenResponse struct {
	Token string      `json:"token"`
	Grant grant.Grant `json:"grant"`
}

type SessionTokenResponse struct {
	Token string `json:"token"`
}

type EventListResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func pagoResponse(p domain.PaymentSubmission, role domain.Role) PagoResponse {
	return PagoResponse{
		ID:                p.ID,
		ProjectID:         p.ProjectID,
		Period:            p.Period,
		TotalAmount:       p.TotalAmount,
		ExpiresOn:         p.ExpiresOn,
		Status:            p.Status,
		StatusLabel:       p.Status.Display(role),
		ApprovalProgress:  p.ApprovalProgress,
		ApprovalsRequired: p.ApprovalsRequired,
		Approvers:         p.Approvers,
		Documents:         p.Documents,
		SubmittedAt:       p.SubmittedAt,
		RejectionNotes:    p.RejectionNotes,
		ResolvedBy:        p.ResolvedBy,
		ResolvedAt:        p.ResolvedAt,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         p.CreatedAt,
		Version:           p.Version,
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
