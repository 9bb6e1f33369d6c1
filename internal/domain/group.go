package domain

// Group is a named set of members within a tenant. Names are unique per
// tenant. A group always has at least one admin, and a user holds at most
// one role per group.
type Group struct {
	recorder

	ID       GroupID
	TenantID TenantID
	Name     string
	Members  []MemberSnapshot
}

// NewGroup constructs a group with the creator as its first admin, recording
// GroupCreated and MemberAdded.
func NewGroup(tenantID TenantID, name string, creator UserID) (*Group, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	g := &Group{
		ID:       NewGroupID(),
		TenantID: tenantID,
		Name:     trimmed,
		Members:  []MemberSnapshot{{UserID: creator, Role: RoleAdmin}},
	}
	g.record(GroupCreated{GroupID: g.ID, TenantID: tenantID, Name: trimmed, OccurredAt: now()})
	g.record(MemberAdded{GroupID: g.ID, UserID: creator, Role: RoleAdmin, OccurredAt: now()})
	return g, nil
}

// RehydrateGroup rebuilds a group from persisted state without recording
// events.
func RehydrateGroup(id GroupID, tenantID TenantID, name string, members []MemberSnapshot) *Group {
	return &Group{ID: id, TenantID: tenantID, Name: name, Members: members}
}

func (g *Group) memberIndex(userID UserID) int {
	for i, m := range g.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (g *Group) adminCount() int {
	n := 0
	for _, m := range g.Members {
		if m.Role.IsAdmin() {
			n++
		}
	}
	return n
}

// AddMember grants a role to a user. Adding a present member with the same
// role is refused; a present member with a different role gets a role
// change (old relationship removed, new one written).
func (g *Group) AddMember(userID UserID, role Role) error {
	if i := g.memberIndex(userID); i >= 0 {
		if g.Members[i].Role == role {
			return Invariantf("user %s already holds role %s in group %s", userID, role, g.ID)
		}
		return g.ChangeMemberRole(userID, role)
	}
	g.Members = append(g.Members, MemberSnapshot{UserID: userID, Role: role})
	g.record(MemberAdded{GroupID: g.ID, UserID: userID, Role: role, OccurredAt: now()})
	return nil
}

// RemoveMember removes a user. Removing a non-member or the last admin is
// refused.
func (g *Group) RemoveMember(userID UserID) error {
	i := g.memberIndex(userID)
	if i < 0 {
		return Invariantf("user %s is not a member of group %s", userID, g.ID)
	}
	removed := g.Members[i]
	if removed.Role.IsAdmin() && g.adminCount() <= 1 {
		return Invariantf("cannot remove the last admin of group %s", g.ID)
	}
	g.Members = append(g.Members[:i], g.Members[i+1:]...)
	g.record(MemberRemoved{GroupID: g.ID, UserID: userID, Role: removed.Role, OccurredAt: now()})
	return nil
}

// ChangeMemberRole moves a member to a new role. Demoting the last admin is
// refused.
func (g *Group) ChangeMemberRole(userID UserID, newRole Role) error {
	i := g.memberIndex(userID)
	if i < 0 {
		return Invariantf("user %s is not a member of group %s", userID, g.ID)
	}
	oldRole := g.Members[i].Role
	if oldRole == newRole {
		return Invariantf("user %s already holds role %s in group %s", userID, newRole, g.ID)
	}
	if oldRole.IsAdmin() && !newRole.IsAdmin() && g.adminCount() <= 1 {
		return Invariantf("cannot demote the last admin of group %s", g.ID)
	}
	g.Members[i].Role = newRole
	g.record(MemberRoleChanged{GroupID: g.ID, UserID: userID, OldRole: oldRole, NewRole: newRole, OccurredAt: now()})
	return nil
}

// MarkForDeletion records GroupDeleted with the full membership snapshot so
// the worker can remove every relationship after the rows are gone.
func (g *Group) MarkForDeletion() {
	snapshot := make([]MemberSnapshot, len(g.Members))
	copy(snapshot, g.Members)
	g.record(GroupDeleted{GroupID: g.ID, TenantID: g.TenantID, Members: snapshot, OccurredAt: now()})
}
