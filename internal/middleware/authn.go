// Package middleware binds the authentication pipeline and the permission
// checks to the HTTP layer.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/auth"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/iam"
)

type contextKey int

const principalKey contextKey = iota

// PrincipalFromContext returns the principal bound by the Authn middleware.
func PrincipalFromContext(ctx context.Context) (*iam.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*iam.Principal)
	return p, ok
}

// WithPrincipal binds a principal to the context. Exposed for handler tests.
func WithPrincipal(ctx context.Context, p *iam.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Authenticator runs the full pipeline. Failures never reach the handlers.
type Authenticator interface {
	Authenticate(ctx context.Context, req iam.AuthRequest) (*iam.Principal, error)
}

// Authn authenticates every request and binds the principal to the request
// context.
func Authn(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.Authenticate(r.Context(), iam.AuthRequestFromHTTP(r))
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// writeAuthError maps pipeline failures to status codes without leaking
// which stage failed beyond the coarse reason class.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrTenantContextMissing):
		http.Error(w, "tenant context missing", http.StatusBadRequest)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
	default:
		http.Error(w, "authentication error", http.StatusInternalServerError)
	}
}

// RequireTenantPermission gates a route on the principal holding the
// permission on its own tenant.
func RequireTenantPermission(engine authz.Engine, permission authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			subject := authz.ObjectRef{Type: authz.ResourceUser, ID: string(principal.UserID)}
			resource := authz.ObjectRef{Type: authz.ResourceTenant, ID: string(principal.TenantID)}
			allowed, err := engine.Check(r.Context(), subject, permission, resource)
			if err != nil {
				http.Error(w, "authorization error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
