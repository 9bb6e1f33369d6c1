package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
)

type workspaceResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	IsRoot    bool      `json:"is_root"`
	CreatedAt time.Time `json:"created_at"`
}

func toWorkspaceResponse(w *domain.Workspace) workspaceResponse {
	resp := workspaceResponse{
		ID:        string(w.ID),
		TenantID:  string(w.TenantID),
		Name:      w.Name,
		IsRoot:    w.IsRoot,
		CreatedAt: w.CreatedAt,
	}
	if w.ParentID != nil {
		parent := string(*w.ParentID)
		resp.ParentID = &parent
	}
	return resp
}

// HandleCreateWorkspace creates a workspace under a parent in the caller's
// tenant.
func HandleCreateWorkspace(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		var req struct {
			Name     string `json:"name"`
			ParentID string `json:"parent_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		parentID, err := domain.ParseWorkspaceID(req.ParentID)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		workspace, err := svc.CreateWorkspace(r.Context(), principal.TenantID, req.Name, parentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWorkspaceResponse(workspace))
	}
}

// HandleListWorkspaces lists the caller's tenant's workspaces.
func HandleListWorkspaces(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		workspaces, err := svc.ListWorkspaces(r.Context(), principal.TenantID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]workspaceResponse, len(workspaces))
		for i, ws := range workspaces {
			out[i] = toWorkspaceResponse(ws)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleGetWorkspace loads one workspace.
func HandleGetWorkspace(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		workspace, err := svc.GetWorkspace(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWorkspaceResponse(workspace))
	}
}

// HandleListWorkspaceChildren lists a workspace's direct children.
func HandleListWorkspaceChildren(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		children, err := svc.ListWorkspaceChildren(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]workspaceResponse, len(children))
		for i, ws := range children {
			out[i] = toWorkspaceResponse(ws)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleDeleteWorkspace deletes a childless non-root workspace.
func HandleDeleteWorkspace(svc *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseWorkspaceID(chi.URLParam(r, "workspaceID"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := svc.DeleteWorkspace(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
