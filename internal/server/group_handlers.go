package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
)

type groupResponse struct {
	ID       string           `json:"id"`
	TenantID string           `json:"tenant_id"`
	Name     string           `json:"name"`
	Members  []memberResponse `json:"members"`
}

func toGroupResponse(g *domain.Group) groupResponse {
	return groupResponse{
		ID:       string(g.ID),
		TenantID: string(g.TenantID),
		Name:     g.Name,
		Members:  toMemberResponses(g.Members),
	}
}

// HandleCreateGroup creates a group in the caller's tenant with the caller
// as its first admin.
func HandleCreateGroup(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		group, err := svc.CreateGroup(r.Context(), principal.TenantID, req.Name, principal.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toGroupResponse(group))
	}
}

// HandleListGroups lists the caller's tenant's groups.
func HandleListGroups(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		groups, err := svc.ListGroups(r.Context(), principal.TenantID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]groupResponse, len(groups))
		for i, g := range groups {
			out[i] = toGroupResponse(g)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleGetGroup loads one group with its members.
func HandleGetGroup(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		group, err := svc.GetGroup(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupResponse(group))
	}
}

// HandleDeleteGroup deletes a group.
func HandleDeleteGroup(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := svc.DeleteGroup(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAddGroupMember grants a group role, or changes it when the user is
// already a member.
func HandleAddGroupMember(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
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

		if err := svc.AddGroupMember(r.Context(), id, userID, role); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleChangeGroupMemberRole moves a member to a new role.
func HandleChangeGroupMemberRole(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		if err := svc.ChangeGroupMemberRole(r.Context(), id, userID, role); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRemoveGroupMember removes a group member.
func HandleRemoveGroupMember(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		if err := svc.RemoveGroupMember(r.Context(), id, userID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
