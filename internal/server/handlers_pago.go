package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"obralink/internal/domain"
	"obralink/internal/workflow"
)

type pagoOutput struct {
	Body PagoResponse `json:"body"`
}

// PagoPath addresses one submission. It is embedded in request inputs, so it
// must stay exported for its parameters to bind.
type PagoPath struct {
	ProjectID string `path:"project_id"`
	ID        int64  `path:"id"`
}

func (h handlers) registerPagos(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pagos",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/pagos",
		Summary:     "List payment submissions",
		Tags:        []string{"pagos"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body PagoListResponse `json:"body"`
	}, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		items, err := h.engine.ListPayments(ctx, g)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]PagoResponse, 0, len(items))
		for _, p := range items {
			out = append(out, pagoResponse(p, g.ActorRole))
		}
		return &struct {
			Body PagoListResponse `json:"body"`
		}{Body: PagoListResponse{Items: out}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-pago",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/pagos",
		Summary:       "Create a payment submission",
		Tags:          []string{"pagos"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreatePagoRequest `json:"body"`
	}) (*pagoOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		p, err := h.engine.CreatePayment(ctx, g, workflow.NewPayment{
			Period:            input.Body.Period,
			TotalAmount:       input.Body.TotalAmount,
			ExpiresOn:         input.Body.ExpiresOn,
			ApprovalsRequired: input.Body.ApprovalsRequired,
			Scheduled:         input.Body.Scheduled,
			RequiredDocs:      input.Body.RequiredDocuments,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &pagoOutput{Body: pagoResponse(p, g.ActorRole)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pago",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/pagos/{id}",
		Summary:     "Get a payment submission",
		Tags:        []string{"pagos"},
	}, func(ctx context.Context, input *PagoPath) (*pagoOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		p, err := h.engine.GetPayment(ctx, g, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &pagoOutput{Body: pagoResponse(p, g.ActorRole)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-pago-document",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/pagos/{id}/documents/{doc}",
		Summary:     "Mark a required document as present or missing",
		Tags:        []string{"pagos"},
	}, func(ctx context.Context, input *struct {
		PagoPath
		Doc  string             `path:"doc"`
		Body SetDocumentRequest `json:"body"`
	}) (*pagoOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		p, err := h.engine.MarkPaymentDocument(ctx, g, input.ID, input.Doc, input.Body.Present)
		if err != nil {
			return nil, handleError(err)
		}
		return &pagoOutput{Body: pagoResponse(p, g.ActorRole)}, nil
	})

	h.registerPagoAction(api, "submit-pago", "submit", "Submit a payment to the mandante",
		func(ctx context.Context, in *PagoPath) (domain.PaymentSubmission, domain.Role, error) {
			g, err := h.grantFor(ctx, in.ProjectID)
			if err != nil {
				return domain.PaymentSubmission{}, "", err
			}
			p, err := h.engine.SubmitPayment(ctx, g, in.ID)
			return p, g.ActorRole, err
		})
	h.registerPagoAction(api, "approve-pago", "approve", "Record one mandante approval",
		func(ctx context.Context, in *PagoPath) (domain.PaymentSubmission, domain.Role, error) {
			g, err := h.grantFor(ctx, in.ProjectID)
			if err != nil {
				return domain.PaymentSubmission{}, "", err
			}
			p, err := h.engine.ApprovePayment(ctx, g, in.ID)
			return p, g.ActorRole, err
		})

	huma.Register(api, huma.Operation{
		OperationID: "reject-pago",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/pagos/{id}/reject",
		Summary:     "Reject a submitted payment",
		Tags:        []string{"pagos"},
	}, func(ctx context.Context, input *struct {
		PagoPath
		Body *RejectPagoRequest `json:"body,omitempty" required:"false"`
	}) (*pagoOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		var notes string
		if input.Body != nil {
			notes = input.Body.Notes
		}
		p, err := h.engine.RejectPayment(ctx, g, input.ID, notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &pagoOutput{Body: pagoResponse(p, g.ActorRole)}, nil
	})
}

// registerPagoAction wires a body-less POST on a single submission.
func (h handlers) registerPagoAction(api huma.API, id, verb, summary string, run func(context.Context, *PagoPath) (domain.PaymentSubmission, domain.Role, error)) {
	huma.Register(api, huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/pagos/{id}/" + verb,
		Summary:     summary,
		Tags:        []string{"pagos"},
	}, func(ctx context.Context, input *PagoPath) (*pagoOutput, error) {
		p, role, err := run(ctx, input)
		if err != nil {
			return nil, handleError(err)
		}
		return &pagoOutput{Body: pagoResponse(p, role)}, nil
	})
}
