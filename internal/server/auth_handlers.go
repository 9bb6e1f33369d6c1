package server

import (
	"net/http"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
)

type whoamiResponse struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	TenantID       string `json:"tenant_id"`
	CredentialKind string `json:"credential_kind"`
}

// HandleWhoAmI echoes the authenticated principal.
func HandleWhoAmI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, whoamiResponse{
			UserID:         string(principal.UserID),
			Username:       principal.Username,
			TenantID:       string(principal.TenantID),
			CredentialKind: string(principal.CredentialKind),
		})
	}
}
