package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"obralink/internal/domain"
	"obralink/internal/repo"
)

func (h handlers) registerGrant(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-grant",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/grant",
		Summary:     "Resolve the caller's access grant for a project",
		Tags:        []string{"access"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body GrantResponse `json:"body"`
	}, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body GrantResponse `json:"body"`
		}{Body: GrantResponse{Grant: g}}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "Read the project audit log, newest first",
		Tags:        []string{"events"},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Cursor     int64  `query:"cursor" minimum:"0"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		g, err := h.grantFor(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		limit := input.Limit
		if limit == 0 {
			limit = 50
		}
		items, err := h.engine.AuditLog(ctx, g, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     input.Cursor,
			Limit:      limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventListResponse{Items: nonNil(items)}
		if len(items) == limit {
			resp.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}

// registerAccess exposes redemption of the single-use references carried by
// payment notifications. Only a live session of a mandante member redeems;
// the resulting link opens that one payment.
func (h handlers) registerAccess(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "redeem-access",
		Method:      http.MethodPost,
		Path:        "/access/{ref}/redeem",
		Summary:     "Exchange an access reference for a payment link token",
		Tags:        []string{"access"},
	}, func(ctx context.Context, input *struct {
		Ref string `path:"ref"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		creds, ok := credentialsFromContext(ctx)
		if !ok || creds.Session == nil {
			return nil, newAPIError(http.StatusUnauthorized, "verification_required", "verification required", nil)
		}
		g, err := h.engine.RedeemAccessRef(ctx, input.Ref, *creds.Session)
		if err != nil {
			return nil, handleError(err)
		}
		issuer := h.tokens
		if h.linkTTL > 0 {
			issuer.TTL = h.linkTTL
		}
		raw, err := issuer.SignLink(g)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: raw, Grant: g}}, nil
	})
}

func (h handlers) registerDevAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-session",
		Method:      http.MethodPost,
		Path:        "/auth/dev/session",
		Summary:     "Mint a session token without verification",
		Tags:        []string{"auth"},
	}, func(ctx context.Context, input *struct {
		Body DevSessionRequest `json:"body"`
	}) (*struct {
		Body SessionTokenResponse `json:"body"`
	}, error) {
		if input.Body.Role != "" && input.Body.Role != domain.RoleContractor && input.Body.Role != domain.RoleMandante {
			return nil, handleError(domain.ValidationError{Field: "role", Reason: "must be contractor or mandante"})
		}
		raw, err := h.tokens.SignSession(input.Body.AccountID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionTokenResponse `json:"body"`
		}{Body: SessionTokenResponse{Token: raw}}, nil
	})
}
