package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"obralink/internal/domain"
	"obralink/internal/workflow"
)

type adicionalOutput struct {
	Body domain.Adicional `json:"body"`
}

func (h handlers) registerAdicionales(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-adicionales",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/adicionales",
		Summary:     "List adicionales visible to the caller",
		Tags:        []string{"adicionales"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		DeepLinkQuery
	}) (*struct {
		ContentLocation string                `header:"Content-Location"`
		Body            AdicionalListResponse `json:"body"`
	}, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		res, err := h.engine.ListAdicionales(ctx, g, input.params())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentLocation string                `header:"Content-Location"`
			Body            AdicionalListResponse `json:"body"`
		}{ContentLocation: input.stripped, Body: AdicionalListResponse{Items: nonNil(res.Items), AutoOpen: res.AutoOpen}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-adicional",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/adicionales",
		Summary:       "Present a change order",
		Tags:          []string{"adicionales"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ProjectID string                 `path:"project_id"`
		Body      CreateAdicionalRequest `json:"body"`
	}) (*adicionalOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		ad, err := h.engine.CreateAdicional(ctx, g, workflow.NewAdicional{
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Category:        input.Body.Category,
			PresentedAmount: input.Body.PresentedAmount,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &adicionalOutput{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-adicional",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/adicionales/{id}",
		Summary:     "Get an adicional",
		Tags:        []string{"adicionales"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		ID        int64  `path:"id"`
	}) (*adicionalOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		ad, err := h.engine.GetAdicional(ctx, g, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &adicionalOutput{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-adicional",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/adicionales/{id}/approve",
		Summary:     "Approve an adicional",
		Tags:        []string{"adicionales"},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		ID        int64                   `path:"id"`
		Body      ApproveAdicionalRequest `json:"body"`
	}) (*adicionalOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		ad, err := h.engine.ApproveAdicional(ctx, g, input.ID, input.Body.ApprovedAmount)
		if err != nil {
			return nil, handleError(err)
		}
		return &adicionalOutput{Body: ad}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-adicional",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/adicionales/{id}/reject",
		Summary:     "Reject an adicional with notes",
		Tags:        []string{"adicionales"},
	}, func(ctx context.Context, input *struct {
		ProjectID string        `path:"project_id"`
		ID        int64         `path:"id"`
		Body      RejectRequest `json:"body"`
	}) (*adicionalOutput, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		ad, err := h.engine.RejectAdicional(ctx, g, input.ID, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &adicionalOutput{Body: ad}, nil
	})
}
