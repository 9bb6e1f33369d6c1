package outbox

import (
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// APIKeyTranslator projects API key lifecycle events. Revocation keeps the
// owner and tenant relationships: revoked keys stay visible in listings and
// are rejected at verification time instead.
type APIKeyTranslator struct{}

func (APIKeyTranslator) SupportedEventTypes() []string {
	return []string{
		domain.KindAPIKeyCreated,
		domain.KindAPIKeyRevoked,
		domain.KindAPIKeyDeleted,
	}
}

func (APIKeyTranslator) Translate(event domain.Event) ([]authz.Op, error) {
	switch e := event.(type) {
	case domain.APIKeyCreated:
		return []authz.Op{
			write(apiKeyRef(e.APIKeyID), authz.RelationOwner, userRef(e.OwnerUserID)),
			write(apiKeyRef(e.APIKeyID), authz.RelationTenant, tenantRef(e.TenantID)),
		}, nil

	case domain.APIKeyRevoked:
		return nil, nil

	case domain.APIKeyDeleted:
		return []authz.Op{
			del(apiKeyRef(e.APIKeyID), authz.RelationOwner, userRef(e.OwnerUserID)),
			del(apiKeyRef(e.APIKeyID), authz.RelationTenant, tenantRef(e.TenantID)),
		}, nil

	default:
		return nil, fmt.Errorf("api key translator: unexpected event %T", event)
	}
}
