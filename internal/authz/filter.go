// Package authz decides which workflow items a grant may see or act on.
//
// Filter is the only path by which items reach a list, a detail view or a
// deep link. It is a pure function of its inputs and fails closed.
package authz

import (
	"fmt"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

// Filter returns the subset of candidates visible to g, in input order.
func Filter[T domain.Item](g grant.Grant, kind domain.Kind, candidates []T) []T {
	out := make([]T, 0, len(candidates))
	if !g.Scope.Includes(kind) {
		return out
	}
	allow := g.AllowList(kind)
	for _, c := range candidates {
		if c.ItemKind() != kind || c.ItemProjectID() != g.ProjectID {
			continue
		}
		if visible(g, kind, allow, c) {
			out = append(out, c)
		}
	}
	return out
}

func visible(g grant.Grant, kind domain.Kind, allow []int64, item domain.Item) bool {
	if len(allow) > 0 {
		return g.Allows(kind, item.ItemID())
	}
	if g.Scope != grant.ScopeGeneral {
		return false
	}
	switch g.ActorRole {
	case domain.RoleMandante:
		return !item.Terminal()
	case domain.RoleContractor:
		return g.Via == grant.SourceSession
	}
	return false
}

// Authorize checks that g may act on item. Unlike Filter it does not hide
// resolved items from a general grant, so an action on an item that was
// already resolved reaches the state machine and fails there.
func Authorize(g grant.Grant, kind domain.Kind, item domain.Item) error {
	if item.ItemKind() != kind || item.ItemProjectID() != g.ProjectID {
		return fmt.Errorf("%w: %s %d not in project %s", domain.ErrForbidden, kind, item.ItemID(), g.ProjectID)
	}
	if !g.Scope.Includes(kind) {
		return fmt.Errorf("%w: scope %s excludes %s", domain.ErrForbidden, g.Scope, kind)
	}
	if allow := g.AllowList(kind); len(allow) > 0 {
		if g.Allows(kind, item.ItemID()) {
			return nil
		}
		return fmt.Errorf("%w: %s %d not in allow-list", domain.ErrForbidden, kind, item.ItemID())
	}
	if g.Scope != grant.ScopeGeneral {
		return fmt.Errorf("%w: no allow-list for %s", domain.ErrForbidden, kind)
	}
	switch g.ActorRole {
	case domain.RoleMandante:
		return nil
	case domain.RoleContractor:
		if g.Via == grant.SourceSession {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot act on %s", domain.ErrForbidden, g.ActorRole, kind)
}

// RequireSession rejects link grants for operations reserved to
// authenticated accounts, such as creating items.
func RequireSession(g grant.Grant, role domain.Role) error {
	if g.Via != grant.SourceSession || g.Scope != grant.ScopeGeneral {
		return fmt.Errorf("%w: authenticated session required", domain.ErrForbidden)
	}
	if role != "" && g.ActorRole != role {
		return fmt.Errorf("%w: %s role required", domain.ErrForbidden, role)
	}
	return nil
}
