package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"obralink/internal/grant"
	"obralink/internal/token"
)

type credentialsKey struct{}

func withCredentials(ctx context.Context, c token.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func credentialsFromContext(ctx context.Context) (token.Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(token.Credentials)
	return c, ok
}

// grantFor resolves the caller's grant for projectID. A session wins over a
// link token.
func (h handlers) grantFor(ctx context.Context, projectID string) (grant.Grant, error) {
	creds, ok := credentialsFromContext(ctx)
	if !ok {
		return grant.Grant{}, newAPIError(http.StatusUnauthorized, "verification_required", "verification required", nil)
	}
	g, err := h.engine.ResolveGrant(ctx, creds.Session, creds.Link, projectID)
	if err != nil {
		return grant.Grant{}, handleError(err)
	}
	return g, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func isPublic(basePath, p string) bool {
	switch p {
	case path.Join(basePath, "health"), path.Join(basePath, "openapi.json"), path.Join(basePath, "auth/dev/session"):
		return true
	}
	return false
}

func newAuthMiddleware(basePath string, tokens token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) || isPublic(basePath, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			raw, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "verification_required", "verification required", nil))
				return
			}
			creds, err := tokens.Verify(raw)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "verification_required", "verification required", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withCredentials(req.Context(), creds)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
