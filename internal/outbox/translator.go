package outbox

import (
	"fmt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/outbox/codec"
)

// Translator turns one decoded domain event into the relationship ops the
// worker applies to the authorization engine. Translators are pure: same
// event in, same ops out, no I/O. An event that projects to nothing returns
// an empty slice.
type Translator interface {
	SupportedEventTypes() []string
	Translate(event domain.Event) ([]authz.Op, error)
}

// Composite routes an outbox entry to the translator registered for its
// event type. Registration conflicts and unknown event types are hard
// errors: an unmapped event would silently desynchronize the graph.
type Composite struct {
	byKind map[string]Translator
}

// NewComposite builds a composite over the given translators.
func NewComposite(translators ...Translator) (*Composite, error) {
	c := &Composite{byKind: make(map[string]Translator)}
	for _, t := range translators {
		for _, kind := range t.SupportedEventTypes() {
			if _, dup := c.byKind[kind]; dup {
				return nil, fmt.Errorf("event type %q registered twice", kind)
			}
			c.byKind[kind] = t
		}
	}
	return c, nil
}

// Translate decodes the payload for eventType and produces the ops.
func (c *Composite) Translate(eventType string, payload []byte) ([]authz.Op, error) {
	t, ok := c.byKind[eventType]
	if !ok {
		return nil, fmt.Errorf("no translator for event type %q", eventType)
	}
	event, err := codec.Decode(eventType, payload)
	if err != nil {
		return nil, err
	}
	return t.Translate(event)
}

// DefaultComposite wires the translators for every bounded context.
func DefaultComposite() *Composite {
	c, err := NewComposite(
		GroupTranslator{},
		TenantTranslator{},
		WorkspaceTranslator{},
		APIKeyTranslator{},
	)
	if err != nil {
		panic(err)
	}
	return c
}

func userRef(id domain.UserID) authz.ObjectRef {
	return authz.ObjectRef{Type: authz.ResourceUser, ID: string(id)}
}

func groupRef(id domain.GroupID) authz.ObjectRef {
	return authz.ObjectRef{Type: authz.ResourceGroup, ID: string(id)}
}

func tenantRef(id domain.TenantID) authz.ObjectRef {
	return authz.ObjectRef{Type: authz.ResourceTenant, ID: string(id)}
}

func workspaceRef(id domain.WorkspaceID) authz.ObjectRef {
	return authz.ObjectRef{Type: authz.ResourceWorkspace, ID: string(id)}
}

func apiKeyRef(id domain.APIKeyID) authz.ObjectRef {
	return authz.ObjectRef{Type: authz.ResourceAPIKey, ID: string(id)}
}

// roleRelation maps a membership role onto its same-named relation.
func roleRelation(role domain.Role) authz.Relation {
	return authz.Relation(role)
}

func write(resource authz.ObjectRef, relation authz.Relation, subject authz.ObjectRef) authz.Op {
	return authz.WriteRelationship{Relationship: authz.Relationship{
		Resource: resource, Relation: relation, Subject: subject,
	}}
}

func del(resource authz.ObjectRef, relation authz.Relation, subject authz.ObjectRef) authz.Op {
	return authz.DeleteRelationship{Relationship: authz.Relationship{
		Resource: resource, Relation: relation, Subject: subject,
	}}
}
