package outbox

import (
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// TenantTranslator projects tenant membership events. Tenant creation and
// deletion carry no relationships of their own: the tenant object only ever
// appears as the subject or resource of other aggregates' triples.
type TenantTranslator struct{}

func (TenantTranslator) SupportedEventTypes() []string {
	return []string{
		domain.KindTenantCreated,
		domain.KindTenantDeleted,
		domain.KindTenantMemberAdded,
		domain.KindTenantMemberRemoved,
	}
}

func (TenantTranslator) Translate(event domain.Event) ([]authz.Op, error) {
	switch e := event.(type) {
	case domain.TenantCreated:
		return nil, nil

	case domain.TenantDeleted:
		return nil, nil

	case domain.TenantMemberAdded:
		return []authz.Op{
			write(tenantRef(e.TenantID), roleRelation(e.Role), userRef(e.UserID)),
		}, nil

	case domain.TenantMemberRemoved:
		return []authz.Op{
			del(tenantRef(e.TenantID), roleRelation(e.Role), userRef(e.UserID)),
		}, nil

	default:
		return nil, fmt.Errorf("tenant translator: unexpected event %T", event)
	}
}
