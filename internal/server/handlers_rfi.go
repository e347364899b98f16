package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"obralink/internal/deeplink"
	"obralink/internal/domain"
	"obralink/internal/workflow"
)

// DeepLinkQuery is embedded in list inputs and must stay exported for its
// parameters and resolver to be found.
type DeepLinkQuery struct {
	RFIID       string `query:"rfiId" doc:"RFI to open once, if visible"`
	AdicionalID string `query:"adicionalId" doc:"Adicional to open once, if visible"`
	stripped    string
}

// Resolve records the request URL without its deep-link parameters. Clients
// replace their location with it so a reload does not reopen the item.
func (q *DeepLinkQuery) Resolve(ctx huma.Context) []error {
	if q.RFIID != "" || q.AdicionalID != "" {
		u := ctx.URL()
		q.stripped = deeplink.Strip(&u).String()
	}
	return nil
}

func (q DeepLinkQuery) params() deeplink.Params {
	return deeplink.FromQuery(url.Values{
		deeplink.ParamRFI:       {q.RFIID},
		deeplink.ParamAdicional: {q.AdicionalID},
	})
}

type rfiOutput struct {
	Body domain.RFI `json:"body"`
}

func (h handlers) registerRFIs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rfis",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/rfis",
		Summary:     "List RFIs visible to the caller",
		Tags:        []string{"rfis"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		DeepLinkQuery
	}) (*struct {
		ContentLocation string          `header:"Content-Location"`
		Body            RFIListResponse `json:"body"`
	}, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		res, err := h.engine.ListRFIs(ctx, g, input.params())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentLocation string          `header:"Content-Location"`
			Body            RFIListResponse `json:"body"`
		}{ContentLocation: input.stripped, Body: RFIListResponse{Items: nonNil(res.Items), AutoOpen: res.AutoOpen}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-rfi",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/rfis",
		Summary:       "Raise an RFI",
		Tags:          []string{"rfis"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      CreateRFIRequest `json:"body"`
	}) (*rfiOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		r, err := h.engine.CreateRFI(ctx, g, workflow.NewRFI{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Urgency:     input.Body.Urgency,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &rfiOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-rfi",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/rfis/{id}",
		Summary:     "Get an RFI",
		Tags:        []string{"rfis"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		ID        int64  `path:"id"`
	}) (*rfiOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		r, err := h.engine.GetRFI(ctx, g, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &rfiOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-rfi",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/rfis/{id}/respond",
		Summary:     "Answer a pending RFI",
		Tags:        []string{"rfis"},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		ID        int64             `path:"id"`
		Body      RespondRFIRequest `json:"body"`
	}) (*rfiOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		r, err := h.engine.RespondRFI(ctx, g, input.ID, input.Body.Response)
		if err != nil {
			return nil, handleError(err)
		}
		return &rfiOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "forward-rfi",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/rfis/{id}/forward",
		Summary:     "Forward a pending RFI to specialists",
		Tags:        []string{"rfis"},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		ID        int64             `path:"id"`
		Body      ForwardRFIRequest `json:"body"`
	}) (*rfiOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		r, err := h.engine.ForwardRFI(ctx, g, input.ID, input.Body.Recipients)
		if err != nil {
			return nil, handleError(err)
		}
		return &rfiOutput{Body: r}, nil
	})
}
