package domain

import "strings"

// MaxNameLength bounds tenant, group, workspace and api key names.
const MaxNameLength = 100

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", Invariantf("name must not be empty")
	}
	if len(trimmed) > MaxNameLength {
		return "", Invariantf("name exceeds %d characters", MaxNameLength)
	}
	return trimmed, nil
}

// Tenant is the isolation root. Its name is globally unique (enforced by the
// relational store). Membership is not held on the aggregate: it lives in
// the authorization graph and is mutated through recorded events, so member
// mutators take the current membership snapshot as input.
type Tenant struct {
	recorder

	ID   TenantID
	Name string
}

// NewTenant constructs a tenant and records TenantCreated.
func NewTenant(name string) (*Tenant, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	t := &Tenant{ID: NewTenantID(), Name: trimmed}
	t.record(TenantCreated{TenantID: t.ID, Name: t.Name, OccurredAt: now()})
	return t, nil
}

// RehydrateTenant rebuilds a tenant from persisted state without recording
// events.
func RehydrateTenant(id TenantID, name string) *Tenant {
	return &Tenant{ID: id, Name: name}
}

// AddMember records a tenant membership grant.
func (t *Tenant) AddMember(userID UserID, role Role) {
	t.record(TenantMemberAdded{TenantID: t.ID, UserID: userID, Role: role, OccurredAt: now()})
}

// RemoveMember records a membership removal. members is the current
// snapshot from the authorization graph; removing the last admin is refused.
func (t *Tenant) RemoveMember(userID UserID, members []MemberSnapshot) error {
	var removed *MemberSnapshot
	admins := 0
	for i, m := range members {
		if m.Role.IsAdmin() {
			admins++
		}
		if m.UserID == userID {
			removed = &members[i]
		}
	}
	if removed == nil {
		return Invariantf("user %s is not a member of tenant %s", userID, t.ID)
	}
	if removed.Role.IsAdmin() && admins <= 1 {
		return Invariantf("cannot remove the last admin of tenant %s", t.ID)
	}
	t.record(TenantMemberRemoved{TenantID: t.ID, UserID: userID, Role: removed.Role, OccurredAt: now()})
	return nil
}

// MarkForDeletion records TenantDeleted with the membership snapshot.
// The translator currently projects no operations for it; see the open
// ticket on tenant deletion cascade semantics.
func (t *Tenant) MarkForDeletion(members []MemberSnapshot) {
	t.record(TenantDeleted{TenantID: t.ID, Members: members, OccurredAt: now()})
}
