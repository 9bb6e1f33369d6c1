package authz

import (
	"context"
	"errors"
	"fmt"
)

// ErrEngine marks a failed call to the authorization engine. The outbox
// worker retries these with backoff and quarantines after the attempt
// budget.
var ErrEngine = errors.New("authorization engine error")

// Engine is the port to the relationship-based authorization store.
// Write and Delete are idempotent: re-applying a write or deleting an
// absent triple is a no-op.
type Engine interface {
	Write(ctx context.Context, rel Relationship) error
	Delete(ctx context.Context, rel Relationship) error
	DeleteAll(ctx context.Context, resource ObjectRef) error

	// Check reports whether subject holds permission on resource.
	Check(ctx context.Context, subject ObjectRef, permission Permission, resource ObjectRef) (bool, error)

	// ListRelationships returns every triple whose resource matches.
	ListRelationships(ctx context.Context, resource ObjectRef) ([]Relationship, error)
}

// grantedBy maps each permission to the relations that confer it.
var grantedBy = map[Permission][]Relation{
	PermissionView:   {RelationOwner, RelationAdmin, RelationEditor, RelationMember},
	PermissionEdit:   {RelationOwner, RelationAdmin, RelationEditor},
	PermissionManage: {RelationOwner, RelationAdmin},
	PermissionDelete: {RelationOwner, RelationAdmin},
}

// GrantingRelations returns the relations that confer permission.
func GrantingRelations(permission Permission) []Relation {
	return grantedBy[permission]
}

// Apply dispatches one op to the engine.
func Apply(ctx context.Context, engine Engine, op Op) error {
	switch o := op.(type) {
	case WriteRelationship:
		return engine.Write(ctx, o.Relationship)
	case DeleteRelationship:
		return engine.Delete(ctx, o.Relationship)
	case DeleteAllRelationships:
		return engine.DeleteAll(ctx, o.Resource)
	default:
		return fmt.Errorf("unknown relationship op %T", op)
	}
}
