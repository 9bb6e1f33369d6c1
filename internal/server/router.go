// Package server assembles the HTTP API on chi. All /v1 routes sit behind
// the authentication middleware; tenant mutations additionally require
// manage on the caller's tenant.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/middleware"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/apikeys"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
)

// RouterOptions controls the construction of the HTTP router. The zero value
// mounts only the health endpoint.
type RouterOptions struct {
	Authenticator middleware.Authenticator
	Directory     *directory.Service
	APIKeys       *apikeys.Service
	Engine        authz.Engine
	HealthHandler http.HandlerFunc
	Middleware    []func(http.Handler) http.Handler
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware and the API
// mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthz", healthHandler)

	if opts.Authenticator == nil {
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Authn(opts.Authenticator))

		r.Get("/whoami", HandleWhoAmI())

		if opts.Directory != nil {
			mountDirectory(r, opts)
		}
		if opts.APIKeys != nil {
			mountAPIKeys(r, opts.APIKeys)
		}
	})

	return r
}

func mountDirectory(r chi.Router, opts RouterOptions) {
	svc := opts.Directory
	requireManage := middleware.RequireTenantPermission(opts.Engine, authz.PermissionManage)

	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", HandleCreateTenant(svc))
		r.Get("/", HandleListTenants(svc))
		r.Get("/{tenantID}", HandleGetTenant(svc))
		r.Get("/{tenantID}/members", HandleListTenantMembers(svc))

		r.Group(func(r chi.Router) {
			r.Use(requireManage)
			r.Delete("/{tenantID}", HandleDeleteTenant(svc))
			r.Post("/{tenantID}/members", HandleAddTenantMember(svc))
			r.Delete("/{tenantID}/members/{userID}", HandleRemoveTenantMember(svc))
		})
	})

	r.Route("/groups", func(r chi.Router) {
		r.Post("/", HandleCreateGroup(svc))
		r.Get("/", HandleListGroups(svc))
		r.Get("/{groupID}", HandleGetGroup(svc))
		r.Delete("/{groupID}", HandleDeleteGroup(svc))
		r.Post("/{groupID}/members", HandleAddGroupMember(svc))
		r.Put("/{groupID}/members/{userID}", HandleChangeGroupMemberRole(svc))
		r.Delete("/{groupID}/members/{userID}", HandleRemoveGroupMember(svc))
	})

	r.Route("/workspaces", func(r chi.Router) {
		r.Post("/", HandleCreateWorkspace(svc))
		r.Get("/", HandleListWorkspaces(svc))
		r.Get("/{workspaceID}", HandleGetWorkspace(svc))
		r.Get("/{workspaceID}/children", HandleListWorkspaceChildren(svc))
		r.Delete("/{workspaceID}", HandleDeleteWorkspace(svc))
	})
}

func mountAPIKeys(r chi.Router, svc *apikeys.Service) {
	r.Route("/api-keys", func(r chi.Router) {
		r.Post("/", HandleCreateAPIKey(svc))
		r.Get("/", HandleListAPIKeys(svc))
		r.Post("/{keyID}/revoke", HandleRevokeAPIKey(svc))
		r.Delete("/{keyID}", HandleDeleteAPIKey(svc))
	})
}
