package outbox

import (
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// GroupTranslator projects group lifecycle and membership events.
type GroupTranslator struct{}

func (GroupTranslator) SupportedEventTypes() []string {
	return []string{
		domain.KindGroupCreated,
		domain.KindGroupDeleted,
		domain.KindMemberAdded,
		domain.KindMemberRemoved,
		domain.KindMemberRoleChanged,
	}
}

func (GroupTranslator) Translate(event domain.Event) ([]authz.Op, error) {
	switch e := event.(type) {
	case domain.GroupCreated:
		return []authz.Op{
			write(groupRef(e.GroupID), authz.RelationTenant, tenantRef(e.TenantID)),
		}, nil

	case domain.MemberAdded:
		return []authz.Op{
			write(groupRef(e.GroupID), roleRelation(e.Role), userRef(e.UserID)),
		}, nil

	case domain.MemberRemoved:
		return []authz.Op{
			del(groupRef(e.GroupID), roleRelation(e.Role), userRef(e.UserID)),
		}, nil

	case domain.MemberRoleChanged:
		// Delete before write: the reverse order replayed after a crash
		// would leave the member with no role at all.
		return []authz.Op{
			del(groupRef(e.GroupID), roleRelation(e.OldRole), userRef(e.UserID)),
			write(groupRef(e.GroupID), roleRelation(e.NewRole), userRef(e.UserID)),
		}, nil

	case domain.GroupDeleted:
		ops := []authz.Op{
			del(groupRef(e.GroupID), authz.RelationTenant, tenantRef(e.TenantID)),
		}
		for _, m := range e.Members {
			ops = append(ops, del(groupRef(e.GroupID), roleRelation(m.Role), userRef(m.UserID)))
		}
		return ops, nil

	default:
		return nil, fmt.Errorf("group translator: unexpected event %T", event)
	}
}
