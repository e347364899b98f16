package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

type fakeMembers map[string]Membership

func (f fakeMembers) Membership(_ context.Context, projectID, accountID string) (Membership, error) {
	if projectID == "broken" {
		return Membership{}, errors.New("store down")
	}
	return f[projectID+"/"+accountID], nil
}

func newResolver() Resolver {
	return Resolver{
		Members: fakeMembers{
			"obra-1/contra": {Contractor: true},
			"obra-1/mand":   {Mandante: true},
			"obra-1/both":   {Contractor: true, Mandante: true},
		},
		Now: func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSessionSingleRole(t *testing.T) {
	r := newResolver()
	g, err := r.Resolve(context.Background(), &Session{AccountID: "mand"}, nil, "obra-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMandante, g.ActorRole)
	assert.Equal(t, grant.ScopeGeneral, g.Scope)
	assert.Equal(t, grant.SourceSession, g.Via)
	assert.Equal(t, "mand", g.Subject)
	assert.Empty(t, g.AuthorizedRFIIDs)
}

func TestSessionBothRolesRequiresSelection(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(context.Background(), &Session{AccountID: "both"}, nil, "obra-1")
	assert.ErrorIs(t, err, ErrRoleSelectionRequired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	g, err := r.Resolve(context.Background(), &Session{AccountID: "both", ActiveRole: domain.RoleContractor}, nil, "obra-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleContractor, g.ActorRole)
}

func TestSessionSelectedRoleNotHeld(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(context.Background(), &Session{AccountID: "contra", ActiveRole: domain.RoleMandante}, nil, "obra-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionWithoutMembership(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(context.Background(), &Session{AccountID: "stranger"}, nil, "obra-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = r.Resolve(context.Background(), &Session{AccountID: "mand"}, nil, "obra-2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionStoreError(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(context.Background(), &Session{AccountID: "mand"}, nil, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLinkGrantVerbatim(t *testing.T) {
	r := newResolver()
	stored := &grant.Grant{
		ProjectID:        "obra-1",
		ActorRole:        domain.RoleSpecialist,
		Scope:            grant.ScopeRFIOnly,
		AuthorizedRFIIDs: []int64{3, 7},
		Subject:          "esp@example.com",
		Via:              grant.SourceLink,
	}
	g, err := r.Resolve(context.Background(), nil, stored, "obra-1")
	require.NoError(t, err)
	assert.Equal(t, grant.ScopeRFIOnly, g.Scope)
	assert.Equal(t, []int64{3, 7}, g.AuthorizedRFIIDs)
	assert.Empty(t, g.AuthorizedAdicionalIDs)

	// the result is a copy
	g.AuthorizedRFIIDs[0] = 99
	assert.EqualValues(t, 3, stored.AuthorizedRFIIDs[0])
}

func TestLinkGrantProjectMismatch(t *testing.T) {
	r := newResolver()
	stored := &grant.Grant{
		ProjectID: "obra-1",
		ActorRole: domain.RoleMandante,
		Scope:     grant.ScopeGeneral,
		Via:       grant.SourceLink,
	}
	g, err := r.Resolve(context.Background(), nil, stored, "obra-2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, grant.Grant{}, g)
}

func TestLinkGrantInvalidRejected(t *testing.T) {
	r := newResolver()
	stored := &grant.Grant{
		ProjectID: "obra-1",
		ActorRole: domain.RoleContractor,
		Scope:     grant.ScopeGeneral,
		Via:       grant.SourceLink,
	}
	_, err := r.Resolve(context.Background(), nil, stored, "obra-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = r.Resolve(context.Background(), nil, nil, "obra-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
