// Package workflow holds the pure transition logic of RFIs, adicionales and
// payment submissions.
//
// Every command has a Validate method that checks its own fields without
// looking at any item, so callers can refuse bad input before touching the
// store, and an Apply method that returns the next item value together with
// the notifications the transition triggers. Nothing here performs I/O; the
// engine commits the result with a conditional update.
package workflow

import (
	"fmt"
	"strings"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

// Actor is who performs a transition.
type Actor struct {
	Subject string
	Role    domain.Role
}

// ActorOf derives the acting identity from a grant.
func ActorOf(g grant.Grant) Actor {
	return Actor{Subject: g.Subject, Role: g.ActorRole}
}

func requireRole(a Actor, roles ...domain.Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not perform this action", domain.ErrForbidden, a.Role)
}

func invalid(kind domain.Kind, id int64, from, action string) error {
	return fmt.Errorf("%w: cannot %s %s %d in status %s", domain.ErrInvalidTransition, action, kind, id, from)
}

func required(field string) error {
	return domain.ValidationError{Field: field, Reason: "is required"}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func notification(typ string, item domain.Item, a Actor, status string) domain.Notification {
	return domain.Notification{
		Type:      typ,
		ProjectID: item.ItemProjectID(),
		Kind:      item.ItemKind(),
		ItemID:    item.ItemID(),
		Actor:     a.Subject,
		Status:    status,
		Payload:   map[string]any{},
	}
}
