// Package grant models the capability an actor presents for one project.
//
// A Grant is threaded explicitly through every call that needs it. It is a
// capability, not an identity: revoking access means changing the id lists
// the verification step hands out, never editing a Grant in place.
package grant

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"obralink/internal/domain"
)

type Scope string

const (
	ScopeGeneral       Scope = "general"
	ScopeRFIOnly       Scope = "rfi-only"
	ScopeAdicionalOnly Scope = "adicional-only"
	// ScopePagoOnly is minted only by redeeming a payment access reference.
	ScopePagoOnly Scope = "pago-only"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeGeneral, ScopeRFIOnly, ScopeAdicionalOnly, ScopePagoOnly:
		return true
	}
	return false
}

// Includes reports whether the scope covers items of kind k.
func (s Scope) Includes(k domain.Kind) bool {
	switch s {
	case ScopeGeneral:
		return k.Valid()
	case ScopeRFIOnly:
		return k == domain.KindRFI
	case ScopeAdicionalOnly:
		return k == domain.KindAdicional
	case ScopePagoOnly:
		return k == domain.KindPayment
	}
	return false
}

// Source records how the grant was obtained.
type Source string

const (
	SourceSession Source = "session"
	SourceLink    Source = "link"
)

type Grant struct {
	ProjectID              string      `json:"projectId"`
	ActorRole              domain.Role `json:"actorRole"`
	Scope                  Scope       `json:"scope"`
	AuthorizedRFIIDs       []int64     `json:"authorizedRfiIds"`
	AuthorizedAdicionalIDs []int64     `json:"authorizedAdicionalIds"`
	AuthorizedPagoIDs      []int64     `json:"authorizedPagoIds,omitempty"`
	DeepLinkRFIID          *int64      `json:"deepLinkRfiId,omitempty"`
	DeepLinkAdicionalID    *int64      `json:"deepLinkAdicionalId,omitempty"`
	IssuedAt               time.Time   `json:"issuedAt"`
	Subject                string      `json:"subject,omitempty"`
	Via                    Source      `json:"via,omitempty"`
}

var (
	errGeneralScope = errors.New("general scope requires a session or a mandante link")
	errEmptyList    = errors.New("scoped link grant requires a non-empty allow-list for its kind")
	errPagoScope    = errors.New("pago-only scope is reserved to mandante links")
)

// Validate checks that a grant is well formed.
func (g Grant) Validate() error {
	if g.ProjectID == "" {
		return errors.New("projectId is required")
	}
	if !g.ActorRole.Valid() {
		return fmt.Errorf("invalid actorRole %q", g.ActorRole)
	}
	if !g.Scope.Valid() {
		return fmt.Errorf("invalid scope %q", g.Scope)
	}
	switch g.Via {
	case SourceSession:
		if g.ActorRole == domain.RoleSpecialist {
			return errors.New("specialists only act through links")
		}
		if g.Scope != ScopeGeneral {
			return errors.New("session grants carry general scope")
		}
		if g.Subject == "" {
			return errors.New("session grant requires subject")
		}
	case SourceLink:
		if g.Scope == ScopeGeneral {
			if g.ActorRole != domain.RoleMandante {
				return errGeneralScope
			}
			return nil
		}
		if g.Scope == ScopePagoOnly && g.ActorRole != domain.RoleMandante {
			return errPagoScope
		}
		if len(g.AllowList(scopeKind(g.Scope))) == 0 {
			return errEmptyList
		}
	default:
		return fmt.Errorf("invalid via %q", g.Via)
	}
	return nil
}

// CheckProject rejects a grant presented against another project.
func (g Grant) CheckProject(projectID string) error {
	if projectID == "" || g.ProjectID != projectID {
		return fmt.Errorf("%w: grant not valid for project %s", domain.ErrUnauthorized, projectID)
	}
	return nil
}

// AllowList returns the explicit id allow-list for kind, if any.
func (g Grant) AllowList(k domain.Kind) []int64 {
	switch k {
	case domain.KindRFI:
		return g.AuthorizedRFIIDs
	case domain.KindAdicional:
		return g.AuthorizedAdicionalIDs
	case domain.KindPayment:
		return g.AuthorizedPagoIDs
	}
	return nil
}

// Allows reports whether id is in the allow-list for kind.
func (g Grant) Allows(k domain.Kind, id int64) bool {
	return slices.Contains(g.AllowList(k), id)
}

// DeepLink returns the deep-link id embedded in the grant for kind.
func (g Grant) DeepLink(k domain.Kind) *int64 {
	switch k {
	case domain.KindRFI:
		return g.DeepLinkRFIID
	case domain.KindAdicional:
		return g.DeepLinkAdicionalID
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a shared grant.
func (g Grant) Clone() Grant {
	out := g
	out.AuthorizedRFIIDs = slices.Clone(g.AuthorizedRFIIDs)
	out.AuthorizedAdicionalIDs = slices.Clone(g.AuthorizedAdicionalIDs)
	out.AuthorizedPagoIDs = slices.Clone(g.AuthorizedPagoIDs)
	if g.DeepLinkRFIID != nil {
		v := *g.DeepLinkRFIID
		out.DeepLinkRFIID = &v
	}
	if g.DeepLinkAdicionalID != nil {
		v := *g.DeepLinkAdicionalID
		out.DeepLinkAdicionalID = &v
	}
	return out
}

// Session builds the general grant of an authenticated account.
func Session(projectID, accountID string, role domain.Role, now time.Time) Grant {
	return Grant{
		ProjectID:              projectID,
		ActorRole:              role,
		Scope:                  ScopeGeneral,
		AuthorizedRFIIDs:       []int64{},
		AuthorizedAdicionalIDs: []int64{},
		IssuedAt:               now.UTC(),
		Subject:                accountID,
		Via:                    SourceSession,
	}
}

// Marshal encodes the grant in its persisted JSON shape.
func Marshal(g Grant) ([]byte, error) {
	if g.AuthorizedRFIIDs == nil {
		g.AuthorizedRFIIDs = []int64{}
	}
	if g.AuthorizedAdicionalIDs == nil {
		g.AuthorizedAdicionalIDs = []int64{}
	}
	return json.Marshal(g)
}

// Parse decodes and validates a persisted grant.
func Parse(data []byte) (Grant, error) {
	var g Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return Grant{}, fmt.Errorf("decode grant: %w", err)
	}
	if g.Via == "" {
		g.Via = SourceLink
	}
	if err := g.Validate(); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func scopeKind(s Scope) domain.Kind {
	switch s {
	case ScopeRFIOnly:
		return domain.KindRFI
	case ScopeAdicionalOnly:
		return domain.KindAdicional
	case ScopePagoOnly:
		return domain.KindPayment
	}
	return ""
}
