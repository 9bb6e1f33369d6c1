package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/apikeys"
)

type apiKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsRevoked  bool       `json:"is_revoked"`
}

func toAPIKeyResponse(k *domain.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:         string(k.ID),
		Name:       k.Name,
		Prefix:     k.Prefix,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		IsRevoked:  k.IsRevoked,
	}
}

type createdAPIKeyResponse struct {
	apiKeyResponse
	// Secret is returned exactly once, at creation.
	Secret string `json:"secret"`
}

// HandleCreateAPIKey mints a key for the caller. The plaintext secret is in
// the response body and nowhere else.
func HandleCreateAPIKey(svc *apikeys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		var req struct {
			Name      string     `json:"name"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		var expiresAt time.Time
		if req.ExpiresAt != nil {
			expiresAt = req.ExpiresAt.UTC()
		}

		created, err := svc.Create(r.Context(), principal.UserID, principal.TenantID, req.Name, expiresAt)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createdAPIKeyResponse{
			apiKeyResponse: toAPIKeyResponse(created.Key),
			Secret:         created.Plaintext,
		})
	}
}

// HandleListAPIKeys lists the caller's keys, revoked ones included.
func HandleListAPIKeys(svc *apikeys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		keys, err := svc.List(r.Context(), principal.TenantID, principal.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]apiKeyResponse, len(keys))
		for i, k := range keys {
			out[i] = toAPIKeyResponse(k)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleRevokeAPIKey permanently disables one of the caller's keys.
func HandleRevokeAPIKey(svc *apikeys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ownAPIKeyID(svc, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.Revoke(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDeleteAPIKey removes one of the caller's keys entirely.
func HandleDeleteAPIKey(svc *apikeys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ownAPIKeyID(svc, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownAPIKeyID parses the key id from the route and verifies the caller owns
// it within the bound tenant. Foreign keys read as not found.
func ownAPIKeyID(svc *apikeys.Service, r *http.Request) (domain.APIKeyID, error) {
	id, err := domain.ParseAPIKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		return "", err
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return "", domain.ErrNotFound
	}
	key, err := svc.Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	if key.OwnerUserID != principal.UserID || key.TenantID != principal.TenantID {
		return "", domain.ErrNotFound
	}
	return id, nil
}
