package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPermission(t *testing.T) {
	t.Run("builds code from entity and action", func(t *testing.T) {
		perm, err := NewPermission("invoice", "edit")
		require.NoError(t, err)
		assert.Equal(t, "invoice:edit", perm.Code)
		assert.Equal(t, "invoice", perm.Entity)
		assert.Equal(t, "edit", perm.Action)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		perm, err := NewPermission(" Invoice ", "VIEW")
		require.NoError(t, err)
		assert.Equal(t, "invoice:view", perm.Code)
	})

	t.Run("rejects empty entity", func(t *testing.T) {
		_, err := NewPermission("", "view")
		assert.Error(t, err)
	})

	t.Run("rejects empty action", func(t *testing.T) {
		_, err := NewPermission("invoice", "")
		assert.Error(t, err)
	})
}

func TestNewPermissionFromCode(t *testing.T) {
	perm, err := NewPermissionFromCode("payment:delete")
	require.NoError(t, err)
	assert.Equal(t, "payment", perm.Entity)
	assert.Equal(t, "delete", perm.Action)

	_, err = NewPermissionFromCode("no-separator")
	assert.Error(t, err)
}

func TestResolveWithoutRole(t *testing.T) {
	t.Run("nil identity", func(t *testing.T) {
		descriptor := Resolve(nil)
		assert.Equal(t, RoleTypeUser, descriptor.RoleType)
		assert.True(t, descriptor.IsDefault)
		assert.Empty(t, descriptor.Capabilities)
	})

	t.Run("identity with empty role tag", func(t *testing.T) {
		descriptor := Resolve(&AuthContext{UserID: "u1", Email: "a@b.co"})
		assert.Equal(t, RoleTypeUser, descriptor.RoleType)
		assert.True(t, descriptor.IsDefault)
		assert.Empty(t, descriptor.Capabilities)
	})
}

func TestResolveRoleTypes(t *testing.T) {
	tests := []struct {
		tag      string
		expected RoleType
	}{
		{"admin", RoleTypeAdmin},
		{"super_admin", RoleTypeSuperAdmin},
		{"accountant", RoleTypeAccountant},
		{"stock_manager", RoleTypeStockManager},
		{"clerk", RoleTypeUser},
		// exact matching: case variants do not classify as elevated roles
		{"Admin", RoleTypeUser},
		{"SUPER_ADMIN", RoleTypeUser},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			descriptor := Resolve(&AuthContext{UserID: "u1", Role: tt.tag})
			assert.Equal(t, tt.expected, descriptor.RoleType)
			assert.Equal(t, tt.tag, descriptor.Name)
			assert.False(t, descriptor.IsDefault)
		})
	}
}

func TestResolveCapabilityDefaults(t *testing.T) {
	t.Run("admin receives every entity action pair", func(t *testing.T) {
		descriptor := Resolve(&AuthContext{UserID: "u1", Role: "admin"})
		for _, entity := range allEntities {
			for _, action := range allActions {
				assert.True(t, descriptor.Has(entity+":"+action), "%s:%s", entity, action)
			}
		}
	})

	t.Run("accountant covers finance documents but not inventory", func(t *testing.T) {
		descriptor := Resolve(&AuthContext{UserID: "u1", Role: "accountant"})
		assert.True(t, descriptor.Has("invoice:create"))
		assert.True(t, descriptor.Has("payment:edit"))
		assert.True(t, descriptor.Has("customer:view"))
		assert.False(t, descriptor.Has("inventory:edit"))
		assert.False(t, descriptor.Has("customer:delete"))
	})

	t.Run("stock manager covers inventory but not invoicing writes", func(t *testing.T) {
		descriptor := Resolve(&AuthContext{UserID: "u1", Role: "stock_manager"})
		assert.True(t, descriptor.Has("inventory:create"))
		assert.True(t, descriptor.Has("delivery_note:delete"))
		assert.True(t, descriptor.Has("invoice:view"))
		assert.False(t, descriptor.Has("invoice:edit"))
	})
}

func TestResolveExplicitGrants(t *testing.T) {
	// the auditor tag is not a role type; its grants layer over the
	// plain-user defaults
	descriptor := Resolve(&AuthContext{UserID: "u1", Role: "auditor"})
	assert.Equal(t, RoleTypeUser, descriptor.RoleType)
	assert.Equal(t, "auditor", descriptor.Name)

	assert.True(t, descriptor.Has("inventory:view"))
	assert.True(t, descriptor.Has("remittance:view"))
	assert.False(t, descriptor.Has("invoice:edit"))
	assert.False(t, descriptor.Has("inventory:create"))
}

func TestRoleDescriptorClassification(t *testing.T) {
	superAdmin := Resolve(&AuthContext{UserID: "u1", Role: "super_admin"})
	assert.True(t, superAdmin.IsSuperAdmin())
	assert.True(t, superAdmin.IsAdmin())

	admin := Resolve(&AuthContext{UserID: "u2", Role: "admin"})
	assert.False(t, admin.IsSuperAdmin())
	assert.True(t, admin.IsAdmin())

	user := Resolve(&AuthContext{UserID: "u3", Role: "clerk"})
	assert.False(t, user.IsSuperAdmin())
	assert.False(t, user.IsAdmin())
}
