package deeplink

import (
	"net/url"
	"strconv"

	"obralink/internal/domain"
	"obralink/internal/grant"
)

const (
	ParamRFI       = "rfiId"
	ParamAdicional = "adicionalId"
)

// Params holds the deep-link ids found on an inbound URL.
type Params struct {
	RFIID       *int64
	AdicionalID *int64
}

// For returns the id requested for kind.
func (p Params) For(k domain.Kind) *int64 {
	switch k {
	case domain.KindRFI:
		return p.RFIID
	case domain.KindAdicional:
		return p.AdicionalID
	}
	return nil
}

// FromQuery reads rfiId and adicionalId. Values that are not positive
// integers are dropped.
func FromQuery(q url.Values) Params {
	return Params{
		RFIID:       parseID(q.Get(ParamRFI)),
		AdicionalID: parseID(q.Get(ParamAdicional)),
	}
}

func parseID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// Strip returns a copy of u without deep-link parameters. They are consumed
// once and must not reopen the item on reload.
func Strip(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	q.Del(ParamRFI)
	q.Del(ParamAdicional)
	out.RawQuery = q.Encode()
	return &out
}

// Target picks the id to open: the URL parameter wins over the id embedded
// in the grant.
func Target(g grant.Grant, p Params, k domain.Kind) *int64 {
	if id := p.For(k); id != nil {
		return id
	}
	return g.DeepLink(k)
}

// Resolve looks id up among items that already passed authz.Filter. A miss,
// including an id that exists but was filtered out, is not an error.
func Resolve[T domain.Item](g grant.Grant, id *int64, k domain.Kind, filtered []T) (T, bool) {
	var zero T
	if id == nil {
		return zero, false
	}
	for _, it := range filtered {
		if it.ItemKind() == k && it.ItemProjectID() == g.ProjectID && it.ItemID() == *id {
			return it, true
		}
	}
	return zero, false
}
