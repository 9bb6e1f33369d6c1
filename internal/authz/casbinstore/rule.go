package casbinstore

import (
	"strings"

	"github.com/uptrace/bun"
)

// RelationRule is one persisted casbin policy line. For relationship
// triples ptype is "p", v0 the subject, v1 the resource, v2 the relation.
type RelationRule struct {
	bun.BaseModel `bun:"table:relation_rules,alias:rr"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Ptype string `bun:"ptype,notnull"`
	V0    string `bun:"v0"`
	V1    string `bun:"v1"`
	V2    string `bun:"v2"`
	V3    string `bun:"v3"`
	V4    string `bun:"v4"`
	V5    string `bun:"v5"`
}

func newRelationRule(ptype string, rule []string) *RelationRule {
	r := &RelationRule{Ptype: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i := 0; i < len(rule) && i < len(fields); i++ {
		*fields[i] = rule[i]
	}
	return r
}

// values returns the non-empty tail of v0..v5.
func (r *RelationRule) values() []string {
	all := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	last := -1
	for i, v := range all {
		if v != "" {
			last = i
		}
	}
	return all[:last+1]
}

// policyLine renders the casbin text form, e.g. "p, user:u1, tenant:t1, member".
func (r *RelationRule) policyLine() string {
	parts := append([]string{r.Ptype}, r.values()...)
	return strings.Join(parts, ", ")
}
