package outbox

import (
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// WorkspaceTranslator projects workspace lifecycle events.
type WorkspaceTranslator struct{}

func (WorkspaceTranslator) SupportedEventTypes() []string {
	return []string{
		domain.KindWorkspaceCreated,
		domain.KindWorkspaceDeleted,
	}
}

func (WorkspaceTranslator) Translate(event domain.Event) ([]authz.Op, error) {
	switch e := event.(type) {
	case domain.WorkspaceCreated:
		ops := []authz.Op{
			write(workspaceRef(e.WorkspaceID), authz.RelationTenant, tenantRef(e.TenantID)),
		}
		if e.ParentID != nil {
			ops = append(ops, write(workspaceRef(e.WorkspaceID), authz.RelationParent, workspaceRef(*e.ParentID)))
		}
		return ops, nil

	case domain.WorkspaceDeleted:
		// The parent edge, if any, is swept with the tenant edge by the
		// engine's per-resource delete.
		return []authz.Op{
			authz.DeleteAllRelationships{Resource: workspaceRef(e.WorkspaceID)},
		}, nil

	default:
		return nil, fmt.Errorf("workspace translator: unexpected event %T", event)
	}
}
