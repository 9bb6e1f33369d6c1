package casbinstore

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// Adapter persists casbin policy lines through an existing *bun.DB so the
// engine shares the application's connection pool. Reworked from the
// msales/casbin-bun-adapter shape: schema-less table names, relation_rules
// table, batch add/remove only.
type Adapter struct {
	db *bun.DB
}

var (
	_ persist.Adapter      = (*Adapter)(nil)
	_ persist.BatchAdapter = (*Adapter)(nil)
)

// NewAdapter wraps db. The relation_rules table is created by migrations.
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// LoadPolicy loads all policy lines into the model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*RelationRule
	if err := a.db.NewSelect().Model(&rules).Scan(context.Background()); err != nil {
		return fmt.Errorf("load relation rules: %w", err)
	}
	for _, r := range rules {
		if len(r.values()) == 0 {
			continue
		}
		if err := persist.LoadPolicyLine(r.policyLine(), m); err != nil {
			return fmt.Errorf("load policy line: %w", err)
		}
	}
	return nil
}

// SavePolicy replaces all persisted lines with the model's current state.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rules []*RelationRule
	for _, section := range []string{"p", "g"} {
		for ptype, ast := range m[section] {
			for _, rule := range ast.Policy {
				rules = append(rules, newRelationRule(ptype, rule))
			}
		}
	}

	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*RelationRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear relation rules: %w", err)
		}
		if len(rules) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rules).Exec(ctx); err != nil {
			return fmt.Errorf("save relation rules: %w", err)
		}
		return nil
	})
}

// AddPolicy inserts one policy line. Duplicate lines are ignored so replays
// stay idempotent.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	r := newRelationRule(ptype, rule)
	if _, err := a.db.NewInsert().Model(r).On("CONFLICT DO NOTHING").Exec(context.Background()); err != nil {
		return fmt.Errorf("add relation rule: %w", err)
	}
	return nil
}

// AddPolicies inserts a batch of policy lines.
func (a *Adapter) AddPolicies(_ string, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}
	batch := make([]*RelationRule, 0, len(rules))
	for _, rule := range rules {
		batch = append(batch, newRelationRule(ptype, rule))
	}
	if _, err := a.db.NewInsert().Model(&batch).On("CONFLICT DO NOTHING").Exec(context.Background()); err != nil {
		return fmt.Errorf("add relation rules: %w", err)
	}
	return nil
}

// RemovePolicy deletes one policy line. Absent lines are a no-op.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	r := newRelationRule(ptype, rule)
	query := a.db.NewDelete().Model((*RelationRule)(nil)).
		Where("ptype = ?", r.Ptype).
		Where("v0 = ?", r.V0).
		Where("v1 = ?", r.V1).
		Where("v2 = ?", r.V2)
	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove relation rule: %w", err)
	}
	return nil
}

// RemovePolicies deletes a batch of policy lines.
func (a *Adapter) RemovePolicies(_ string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.RemovePolicy("", ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFilteredPolicy deletes every line matching the field filter.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := a.db.NewDelete().Model((*RelationRule)(nil)).Where("ptype = ?", ptype)
	columns := []string{"v0", "v1", "v2", "v3", "v4", "v5"}
	for i, value := range fieldValues {
		if value == "" {
			continue
		}
		pos := fieldIndex + i
		if pos >= len(columns) {
			break
		}
		query = query.Where(columns[pos]+" = ?", value)
	}
	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered relation rules: %w", err)
	}
	return nil
}
