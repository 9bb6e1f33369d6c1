package casbinstore

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
)

//go:embed model.conf
var relationModel string

// Engine implements authz.Engine on a casbin enforcer backed by the bun
// adapter. Relationship triples are stored as policy lines
// (subject, resource, relation); permission checks expand the permission
// into its granting relations and probe each triple.
type Engine struct {
	enforcer casbin.IEnforcer
}

var _ authz.Engine = (*Engine)(nil)

// NewEngine builds the enforcer with the embedded model and loads existing
// rules from the database.
func NewEngine(db *bun.DB) (*Engine, error) {
	m, err := model.NewModelFromString(relationModel)
	if err != nil {
		return nil, fmt.Errorf("parse relation model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, NewAdapter(db))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load relation rules: %w", err)
	}
	return &Engine{enforcer: enforcer}, nil
}

// Write stores a triple. Re-writing an existing triple is a no-op.
func (e *Engine) Write(_ context.Context, rel authz.Relationship) error {
	_, err := e.enforcer.AddPolicy(rel.Subject.String(), rel.Resource.String(), string(rel.Relation))
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", authz.ErrEngine, rel, err)
	}
	return nil
}

// Delete removes a triple. Deleting an absent triple is a no-op.
func (e *Engine) Delete(_ context.Context, rel authz.Relationship) error {
	_, err := e.enforcer.RemovePolicy(rel.Subject.String(), rel.Resource.String(), string(rel.Relation))
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", authz.ErrEngine, rel, err)
	}
	return nil
}

// DeleteAll removes every triple whose resource matches.
func (e *Engine) DeleteAll(_ context.Context, resource authz.ObjectRef) error {
	_, err := e.enforcer.RemoveFilteredPolicy(1, resource.String())
	if err != nil {
		return fmt.Errorf("%w: delete all for %s: %v", authz.ErrEngine, resource, err)
	}
	return nil
}

// Check reports whether subject holds permission on resource via any of the
// permission's granting relations.
func (e *Engine) Check(_ context.Context, subject authz.ObjectRef, permission authz.Permission, resource authz.ObjectRef) (bool, error) {
	for _, rel := range authz.GrantingRelations(permission) {
		ok, err := e.enforcer.Enforce(subject.String(), resource.String(), string(rel))
		if err != nil {
			return false, fmt.Errorf("%w: check %s on %s: %v", authz.ErrEngine, permission, resource, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ListRelationships returns every triple on resource.
func (e *Engine) ListRelationships(_ context.Context, resource authz.ObjectRef) ([]authz.Relationship, error) {
	lines, err := e.enforcer.GetFilteredPolicy(1, resource.String())
	if err != nil {
		return nil, fmt.Errorf("%w: list relationships for %s: %v", authz.ErrEngine, resource, err)
	}
	rels := make([]authz.Relationship, 0, len(lines))
	for _, line := range lines {
		if len(line) < 3 {
			continue
		}
		subject, err := authz.ParseObjectRef(line[0])
		if err != nil {
			return nil, err
		}
		res, err := authz.ParseObjectRef(line[1])
		if err != nil {
			return nil, err
		}
		rels = append(rels, authz.Relationship{
			Resource: res,
			Relation: authz.Relation(line[2]),
			Subject:  subject,
		})
	}
	return rels, nil
}
