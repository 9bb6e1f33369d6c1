package authz

import (
	"fmt"
	"strings"
)

// ResourceType is the closed set of resource and subject types known to the
// authorization engine.
type ResourceType string

const (
	ResourceUser      ResourceType = "user"
	ResourceGroup     ResourceType = "group"
	ResourceWorkspace ResourceType = "workspace"
	ResourceTenant    ResourceType = "tenant"
	ResourceAPIKey    ResourceType = "api_key"
)

// Relation is the closed set of relations written between resources.
type Relation string

const (
	RelationTenant    Relation = "tenant"
	RelationOwner     Relation = "owner"
	RelationAdmin     Relation = "admin"
	RelationMember    Relation = "member"
	RelationEditor    Relation = "editor"
	RelationParent    Relation = "parent"
	RelationWorkspace Relation = "workspace"
)

// Permission is the closed set of checked (never written) capabilities.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionManage Permission = "manage"
	PermissionDelete Permission = "delete"
)

// ObjectRef identifies a resource or subject as a typed id.
type ObjectRef struct {
	Type ResourceType
	ID   string
}

// String renders the wire form "type:id".
func (o ObjectRef) String() string {
	return string(o.Type) + ":" + o.ID
}

// ParseObjectRef parses the wire form "type:id".
func ParseObjectRef(s string) (ObjectRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return ObjectRef{}, fmt.Errorf("malformed object reference %q", s)
	}
	return ObjectRef{Type: ResourceType(typ), ID: id}, nil
}

// Relationship is a (resource, relation, subject) triple.
type Relationship struct {
	Resource ObjectRef
	Relation Relation
	Subject  ObjectRef
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s#%s@%s", r.Resource, r.Relation, r.Subject)
}

// Op is one mutation the outbox worker applies to the engine. The set is
// closed: write, delete, delete-all-for-resource.
type Op interface {
	isOp()
}

// WriteRelationship writes one triple. Replays are no-ops.
type WriteRelationship struct {
	Relationship
}

func (WriteRelationship) isOp() {}

// DeleteRelationship removes one triple. Deleting an absent triple is a
// no-op.
type DeleteRelationship struct {
	Relationship
}

func (DeleteRelationship) isOp() {}

// DeleteAllRelationships removes every triple whose resource matches.
type DeleteAllRelationships struct {
	Resource ObjectRef
}

func (DeleteAllRelationships) isOp() {}
