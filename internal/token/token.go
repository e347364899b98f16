// Package token signs and verifies the bearer tokens the API accepts.
//
// A session token names an authenticated account and optionally its active
// role. A link token carries a complete link grant issued by the
// verification step.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"obralink/internal/domain"
	"obralink/internal/grant"
	"obralink/internal/identity"
)

const (
	KindSession = "session"
	KindLink    = "link"
)

var ErrInvalid = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)

type claims struct {
	jwt.RegisteredClaims
	Kind       string       `json:"kind"`
	ActiveRole domain.Role  `json:"active_role,omitempty"`
	Grant      *grant.Grant `json:"grant,omitempty"`
}

type Issuer struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i Issuer) registered(subject string) jwt.RegisteredClaims {
	now := i.now()
	rc := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   "obralink",
	}
	if i.TTL > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(i.TTL))
	}
	return rc
}

func (i Issuer) sign(c claims) (string, error) {
	if strings.TrimSpace(i.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(i.Secret))
}

// SignSession mints a session token. An empty role leaves the choice to the
// resolver.
func (i Issuer) SignSession(accountID string, role domain.Role) (string, error) {
	if accountID == "" {
		return "", errors.New("account required")
	}
	if role != "" && role != domain.RoleContractor && role != domain.RoleMandante {
		return "", fmt.Errorf("invalid session role %q", role)
	}
	return i.sign(claims{RegisteredClaims: i.registered(accountID), Kind: KindSession, ActiveRole: role})
}

// SignLink mints a token carrying g, which must be a valid link grant.
func (i Issuer) SignLink(g grant.Grant) (string, error) {
	if g.Via == "" {
		g.Via = grant.SourceLink
	}
	if g.Via != grant.SourceLink {
		return "", errors.New("only link grants can be signed as links")
	}
	if err := g.Validate(); err != nil {
		return "", err
	}
	if g.IssuedAt.IsZero() {
		g.IssuedAt = i.now().UTC()
	}
	return i.sign(claims{RegisteredClaims: i.registered(g.Subject), Kind: KindLink, Grant: &g})
}

// Credentials is what a verified token stands for. Exactly one of the
// fields is set.
type Credentials struct {
	Session *identity.Session
	Link    *grant.Grant
}

// Verify checks the signature and expiry of raw. Every failure wraps
// domain.ErrUnauthorized.
func (i Issuer) Verify(raw string) (Credentials, error) {
	if strings.TrimSpace(i.Secret) == "" {
		return Credentials{}, fmt.Errorf("%w: jwt secret not configured", domain.ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return []byte(i.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Credentials{}, ErrInvalid
	}
	switch c.Kind {
	case KindSession:
		if c.Subject == "" {
			return Credentials{}, ErrInvalid
		}
		return Credentials{Session: &identity.Session{AccountID: c.Subject, ActiveRole: c.ActiveRole}}, nil
	case KindLink:
		if c.Grant == nil {
			return Credentials{}, ErrInvalid
		}
		g := *c.Grant
		if g.Via == "" {
			g.Via = grant.SourceLink
		}
		if g.Via != grant.SourceLink || g.Validate() != nil {
			return Credentials{}, ErrInvalid
		}
		return Credentials{Link: &g}, nil
	}
	return Credentials{}, ErrInvalid
}
