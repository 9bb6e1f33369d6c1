package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

func mustPayload(t *testing.T, event domain.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestCompositeRoutesAllEventTypes(t *testing.T) {
	c := DefaultComposite()

	kinds := []string{
		domain.KindGroupCreated, domain.KindGroupDeleted,
		domain.KindMemberAdded, domain.KindMemberRemoved, domain.KindMemberRoleChanged,
		domain.KindTenantCreated, domain.KindTenantDeleted,
		domain.KindTenantMemberAdded, domain.KindTenantMemberRemoved,
		domain.KindWorkspaceCreated, domain.KindWorkspaceDeleted,
		domain.KindAPIKeyCreated, domain.KindAPIKeyRevoked, domain.KindAPIKeyDeleted,
	}
	for _, kind := range kinds {
		_, ok := c.byKind[kind]
		assert.True(t, ok, "no translator registered for %s", kind)
	}
}

func TestCompositeUnknownEventType(t *testing.T) {
	c := DefaultComposite()
	_, err := c.Translate("SomethingElseHappened", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no translator")
}

func TestCompositeRejectsDuplicateRegistration(t *testing.T) {
	_, err := NewComposite(GroupTranslator{}, GroupTranslator{})
	require.Error(t, err)
}

func TestGroupTranslator(t *testing.T) {
	c := DefaultComposite()
	occurred := time.Now().UTC()

	groupRes := authz.ObjectRef{Type: authz.ResourceGroup, ID: "g1"}
	tenantSub := authz.ObjectRef{Type: authz.ResourceTenant, ID: "t1"}
	alice := authz.ObjectRef{Type: authz.ResourceUser, ID: "alice"}
	bob := authz.ObjectRef{Type: authz.ResourceUser, ID: "bob"}

	t.Run("GroupCreated writes tenant edge", func(t *testing.T) {
		ops, err := c.Translate(domain.KindGroupCreated, mustPayload(t, domain.GroupCreated{
			GroupID: "g1", TenantID: "t1", Name: "team", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationTenant, Subject: tenantSub,
			}},
		}, ops)
	})

	t.Run("MemberAdded writes role edge", func(t *testing.T) {
		ops, err := c.Translate(domain.KindMemberAdded, mustPayload(t, domain.MemberAdded{
			GroupID: "g1", UserID: "alice", Role: domain.RoleEditor, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationEditor, Subject: alice,
			}},
		}, ops)
	})

	t.Run("MemberRemoved deletes the snapshotted role", func(t *testing.T) {
		ops, err := c.Translate(domain.KindMemberRemoved, mustPayload(t, domain.MemberRemoved{
			GroupID: "g1", UserID: "bob", Role: domain.RoleMember, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationMember, Subject: bob,
			}},
		}, ops)
	})

	t.Run("MemberRoleChanged deletes old role before writing new", func(t *testing.T) {
		ops, err := c.Translate(domain.KindMemberRoleChanged, mustPayload(t, domain.MemberRoleChanged{
			GroupID: "g1", UserID: "alice",
			OldRole: domain.RoleMember, NewRole: domain.RoleAdmin,
			OccurredAt: occurred,
		}))
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, authz.DeleteRelationship{Relationship: authz.Relationship{
			Resource: groupRes, Relation: authz.RelationMember, Subject: alice,
		}}, ops[0])
		assert.Equal(t, authz.WriteRelationship{Relationship: authz.Relationship{
			Resource: groupRes, Relation: authz.RelationAdmin, Subject: alice,
		}}, ops[1])
	})

	t.Run("GroupDeleted expands the member snapshot", func(t *testing.T) {
		ops, err := c.Translate(domain.KindGroupDeleted, mustPayload(t, domain.GroupDeleted{
			GroupID: "g1", TenantID: "t1",
			Members: []domain.MemberSnapshot{
				{UserID: "alice", Role: domain.RoleAdmin},
				{UserID: "bob", Role: domain.RoleMember},
			},
			OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationTenant, Subject: tenantSub,
			}},
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationAdmin, Subject: alice,
			}},
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: groupRes, Relation: authz.RelationMember, Subject: bob,
			}},
		}, ops)
	})
}

func TestTenantTranslator(t *testing.T) {
	c := DefaultComposite()
	occurred := time.Now().UTC()
	tenantRes := authz.ObjectRef{Type: authz.ResourceTenant, ID: "t1"}
	alice := authz.ObjectRef{Type: authz.ResourceUser, ID: "alice"}

	t.Run("TenantCreated is a no-op", func(t *testing.T) {
		ops, err := c.Translate(domain.KindTenantCreated, mustPayload(t, domain.TenantCreated{
			TenantID: "t1", Name: "acme", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("TenantDeleted is a no-op", func(t *testing.T) {
		ops, err := c.Translate(domain.KindTenantDeleted, mustPayload(t, domain.TenantDeleted{
			TenantID: "t1", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("TenantMemberAdded writes role edge", func(t *testing.T) {
		ops, err := c.Translate(domain.KindTenantMemberAdded, mustPayload(t, domain.TenantMemberAdded{
			TenantID: "t1", UserID: "alice", Role: domain.RoleAdmin, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: tenantRes, Relation: authz.RelationAdmin, Subject: alice,
			}},
		}, ops)
	})

	t.Run("TenantMemberRemoved deletes the snapshotted role", func(t *testing.T) {
		ops, err := c.Translate(domain.KindTenantMemberRemoved, mustPayload(t, domain.TenantMemberRemoved{
			TenantID: "t1", UserID: "alice", Role: domain.RoleMember, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: tenantRes, Relation: authz.RelationMember, Subject: alice,
			}},
		}, ops)
	})
}

func TestWorkspaceTranslator(t *testing.T) {
	c := DefaultComposite()
	occurred := time.Now().UTC()
	wsRes := authz.ObjectRef{Type: authz.ResourceWorkspace, ID: "w1"}
	tenantSub := authz.ObjectRef{Type: authz.ResourceTenant, ID: "t1"}

	t.Run("root workspace writes only the tenant edge", func(t *testing.T) {
		ops, err := c.Translate(domain.KindWorkspaceCreated, mustPayload(t, domain.WorkspaceCreated{
			WorkspaceID: "w1", TenantID: "t1", Name: "root", IsRoot: true, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: wsRes, Relation: authz.RelationTenant, Subject: tenantSub,
			}},
		}, ops)
	})

	t.Run("child workspace also writes the parent edge", func(t *testing.T) {
		parent := domain.WorkspaceID("w0")
		ops, err := c.Translate(domain.KindWorkspaceCreated, mustPayload(t, domain.WorkspaceCreated{
			WorkspaceID: "w1", TenantID: "t1", Name: "child", ParentID: &parent, OccurredAt: occurred,
		}))
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, authz.WriteRelationship{Relationship: authz.Relationship{
			Resource: wsRes, Relation: authz.RelationParent,
			Subject: authz.ObjectRef{Type: authz.ResourceWorkspace, ID: "w0"},
		}}, ops[1])
	})

	t.Run("WorkspaceDeleted sweeps every edge of the resource", func(t *testing.T) {
		ops, err := c.Translate(domain.KindWorkspaceDeleted, mustPayload(t, domain.WorkspaceDeleted{
			WorkspaceID: "w1", TenantID: "t1", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.DeleteAllRelationships{Resource: wsRes},
		}, ops)
	})
}

func TestAPIKeyTranslator(t *testing.T) {
	c := DefaultComposite()
	occurred := time.Now().UTC()
	keyRes := authz.ObjectRef{Type: authz.ResourceAPIKey, ID: "k1"}
	alice := authz.ObjectRef{Type: authz.ResourceUser, ID: "alice"}
	tenantSub := authz.ObjectRef{Type: authz.ResourceTenant, ID: "t1"}

	t.Run("APIKeyCreated writes owner and tenant edges", func(t *testing.T) {
		ops, err := c.Translate(domain.KindAPIKeyCreated, mustPayload(t, domain.APIKeyCreated{
			APIKeyID: "k1", OwnerUserID: "alice", TenantID: "t1", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: keyRes, Relation: authz.RelationOwner, Subject: alice,
			}},
			authz.WriteRelationship{Relationship: authz.Relationship{
				Resource: keyRes, Relation: authz.RelationTenant, Subject: tenantSub,
			}},
		}, ops)
	})

	t.Run("APIKeyRevoked keeps relationships", func(t *testing.T) {
		ops, err := c.Translate(domain.KindAPIKeyRevoked, mustPayload(t, domain.APIKeyRevoked{
			APIKeyID: "k1", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("APIKeyDeleted deletes both edges", func(t *testing.T) {
		ops, err := c.Translate(domain.KindAPIKeyDeleted, mustPayload(t, domain.APIKeyDeleted{
			APIKeyID: "k1", OwnerUserID: "alice", TenantID: "t1", OccurredAt: occurred,
		}))
		require.NoError(t, err)
		assert.Equal(t, []authz.Op{
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: keyRes, Relation: authz.RelationOwner, Subject: alice,
			}},
			authz.DeleteRelationship{Relationship: authz.Relationship{
				Resource: keyRes, Relation: authz.RelationTenant, Subject: tenantSub,
			}},
		}, ops)
	})
}
