package deeplink

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obralink/internal/authz"
	"obralink/internal/domain"
	"obralink/internal/grant"
)

func adicionalGrant() grant.Grant {
	return grant.Grant{
		ProjectID:              "obra-1",
		ActorRole:              domain.RoleContractor,
		Scope:                  grant.ScopeAdicionalOnly,
		AuthorizedAdicionalIDs: []int64{4, 5},
		Via:                    grant.SourceLink,
	}
}

func TestDeepLinkOutsideAllowListIgnored(t *testing.T) {
	g := adicionalGrant()
	all := []domain.Adicional{
		{ID: 4, ProjectID: "obra-1"},
		{ID: 12, ProjectID: "obra-1"},
	}
	filtered := authz.Filter(g, domain.KindAdicional, all)
	params := FromQuery(url.Values{"adicionalId": {"12"}})

	item, ok := Resolve(g, Target(g, params, domain.KindAdicional), domain.KindAdicional, filtered)
	assert.False(t, ok)
	assert.Zero(t, item.ID)
}

func TestDeepLinkOpensFilteredItem(t *testing.T) {
	g := adicionalGrant()
	filtered := authz.Filter(g, domain.KindAdicional, []domain.Adicional{{ID: 4, ProjectID: "obra-1"}})
	params := FromQuery(url.Values{"adicionalId": {"4"}})
	item, ok := Resolve(g, Target(g, params, domain.KindAdicional), domain.KindAdicional, filtered)
	require.True(t, ok)
	assert.EqualValues(t, 4, item.ID)
}

func TestTargetFallsBackToGrant(t *testing.T) {
	g := adicionalGrant()
	id := int64(5)
	g.DeepLinkAdicionalID = &id
	got := Target(g, Params{}, domain.KindAdicional)
	require.NotNil(t, got)
	assert.EqualValues(t, 5, *got)
	assert.Nil(t, Target(g, Params{}, domain.KindRFI))

	other := int64(4)
	got = Target(g, Params{AdicionalID: &other}, domain.KindAdicional)
	assert.EqualValues(t, 4, *got)
}

func TestFromQueryDropsGarbage(t *testing.T) {
	p := FromQuery(url.Values{"rfiId": {"abc"}, "adicionalId": {"-3"}})
	assert.Nil(t, p.RFIID)
	assert.Nil(t, p.AdicionalID)

	p = FromQuery(url.Values{"rfiId": {"8"}})
	require.NotNil(t, p.RFIID)
	assert.EqualValues(t, 8, *p.RFIID)
}

func TestStrip(t *testing.T) {
	u, err := url.Parse("https://obra.example.com/projects/obra-1?rfiId=3&tab=rfi&adicionalId=2")
	require.NoError(t, err)
	out := Strip(u)
	assert.Equal(t, "tab=rfi", out.RawQuery)
	assert.Contains(t, u.RawQuery, "rfiId=3")
}

func TestResolveNilID(t *testing.T) {
	_, ok := Resolve[domain.RFI](grant.Grant{ProjectID: "obra-1"}, nil, domain.KindRFI, []domain.RFI{{ID: 1, ProjectID: "obra-1"}})
	assert.False(t, ok)
}
