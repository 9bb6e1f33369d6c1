package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
)

type tenantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toTenantResponse(t *domain.Tenant) tenantResponse {
	return tenantResponse{ID: string(t.ID), Name: t.Name}
}

type memberResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func toMemberResponses(members []domain.MemberSnapshot) []memberResponse {
	out := make([]memberResponse, len(members))
	for i, m := range members {
		out[i] = memberResponse{UserID: string(m.UserID), Role: m.Role.String()}
	}
	return out
}

// HandleCreateTenant creates a tenant; the caller becomes its first admin.
func HandleCreateTenant(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		tenant, err := svc.CreateTenant(r.Context(), req.Name, principal.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
	}
}

// HandleListTenants lists every tenant.
func HandleListTenants(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := svc.ListTenants(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]tenantResponse, len(tenants))
		for i, t := range tenants {
			out[i] = toTenantResponse(t)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleGetTenant loads one tenant by id.
func HandleGetTenant(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		tenant, err := svc.GetTenant(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTenantResponse(tenant))
	}
}

// HandleDeleteTenant deletes an empty tenant.
func HandleDeleteTenant(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := svc.DeleteTenant(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleListTenantMembers reads the membership snapshot from the
// authorization graph.
func HandleListTenantMembers(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		members, err := svc.TenantMembers(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMemberResponses(members))
	}
}

// HandleAddTenantMember grants a tenant role.
func HandleAddTenantMember(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		userID, err := domain.ParseUserID(req.UserID)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		if err := svc.AddTenantMember(r.Context(), id, userID, role); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRemoveTenantMember removes a tenant membership.
func HandleRemoveTenantMember(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		if err := svc.RemoveTenantMember(r.Context(), id, userID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
