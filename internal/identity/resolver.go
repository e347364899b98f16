package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

// ErrRoleSelectionRequired is returned when an account belongs to both sides
// of a project and has not chosen which one it acts as.
var ErrRoleSelectionRequired = fmt.Errorf("%w: role selection required", domain.ErrUnauthorized)

// Session is a live authenticated session. ActiveRole is empty until the
// account picks a role.
type Session struct {
	AccountID  string
	ActiveRole domain.Role
}

// Membership tells which sides of a project an account belongs to.
type Membership struct {
	Contractor bool
	Mandante   bool
}

// MembershipLookup is implemented by the store.
type MembershipLookup interface {
	Membership(ctx context.Context, projectID, accountID string) (Membership, error)
}

type Resolver struct {
	Members MembershipLookup
	Now     func() time.Time
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve builds the grant for a request against requestedProjectID. A live
// session takes precedence over a stored link grant. Every failure wraps
// domain.ErrUnauthorized.
func (r Resolver) Resolve(ctx context.Context, session *Session, stored *grant.Grant, requestedProjectID string) (grant.Grant, error) {
	if requestedProjectID == "" {
		return grant.Grant{}, fmt.Errorf("%w: project required", domain.ErrUnauthorized)
	}
	if session != nil && session.AccountID != "" {
		return r.fromSession(ctx, *session, requestedProjectID)
	}
	if stored == nil {
		return grant.Grant{}, fmt.Errorf("%w: no session or link grant", domain.ErrUnauthorized)
	}
	if err := stored.CheckProject(requestedProjectID); err != nil {
		return grant.Grant{}, err
	}
	if stored.Via != grant.SourceLink {
		return grant.Grant{}, fmt.Errorf("%w: stored grant is not a link grant", domain.ErrUnauthorized)
	}
	if err := stored.Validate(); err != nil {
		return grant.Grant{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return stored.Clone(), nil
}

func (r Resolver) fromSession(ctx context.Context, s Session, projectID string) (grant.Grant, error) {
	if r.Members == nil {
		return grant.Grant{}, errors.New("membership lookup not configured")
	}
	m, err := r.Members.Membership(ctx, projectID, s.AccountID)
	if err != nil {
		return grant.Grant{}, err
	}
	role, err := pickRole(m, s.ActiveRole)
	if err != nil {
		return grant.Grant{}, err
	}
	return grant.Session(projectID, s.AccountID, role, r.now()), nil
}

func pickRole(m Membership, selected domain.Role) (domain.Role, error) {
	switch {
	case !m.Contractor && !m.Mandante:
		return "", fmt.Errorf("%w: account has no role on project", domain.ErrUnauthorized)
	case m.Contractor && m.Mandante && selected == "":
		return "", ErrRoleSelectionRequired
	}
	if selected == "" {
		if m.Contractor {
			return domain.RoleContractor, nil
		}
		return domain.RoleMandante, nil
	}
	switch selected {
	case domain.RoleContractor:
		if m.Contractor {
			return selected, nil
		}
	case domain.RoleMandante:
		if m.Mandante {
			return selected, nil
		}
	}
	return "", fmt.Errorf("%w: account does not hold role %s", domain.ErrUnauthorized, selected)
}
