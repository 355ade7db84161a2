package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/console/internal/domain/identity"
)

func staticRole(descriptor identity.RoleDescriptor) RoleSource {
	return func() identity.RoleDescriptor { return descriptor }
}

func roleWithCapabilities(roleType identity.RoleType, codes ...string) identity.RoleDescriptor {
	caps := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		caps[code] = struct{}{}
	}
	return identity.RoleDescriptor{
		Name:         string(roleType),
		RoleType:     roleType,
		Capabilities: caps,
	}
}

func TestSuperAdminOverridesEverything(t *testing.T) {
	// explicit capability set is empty, the role type alone decides
	engine := NewPermissionEngine(staticRole(roleWithCapabilities(identity.RoleTypeSuperAdmin)))

	assert.True(t, engine.CanCode("invoice:delete"))
	assert.True(t, engine.CanCode("anything:at_all"))
	assert.True(t, engine.CanView(identity.EntityInventory))
	assert.True(t, engine.CanCreate(identity.EntityQuotation))
	assert.True(t, engine.CanEdit(identity.EntityPayment))
	assert.True(t, engine.CanDelete(identity.EntityCustomer))

	decision := engine.CheckAction(ActionCheck{EntityType: identity.EntityInvoice, ActionType: identity.ActionDelete})
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Message)
}

func TestNoRoleDeniesEverything(t *testing.T) {
	engine := NewPermissionEngine(func() identity.RoleDescriptor {
		return identity.Resolve(nil)
	})

	assert.False(t, engine.CanCode("invoice:view"))
	assert.False(t, engine.CanView(identity.EntityInvoice))
	assert.False(t, engine.CanCreate(identity.EntityInvoice))
	assert.False(t, engine.CanEdit(identity.EntityInvoice))
	assert.False(t, engine.CanDelete(identity.EntityInvoice))
}

func TestCheckActionEntityActionFallback(t *testing.T) {
	// admin role snapshot granted only invoice view and edit
	engine := NewPermissionEngine(staticRole(roleWithCapabilities(
		identity.RoleTypeAdmin, "invoice:view", "invoice:edit")))

	allowed := engine.CheckAction(ActionCheck{EntityType: "invoice", ActionType: "edit"})
	assert.True(t, allowed.Allowed)
	assert.Empty(t, allowed.Message)

	denied := engine.CheckAction(ActionCheck{EntityType: "invoice", ActionType: "delete"})
	assert.False(t, denied.Allowed)
	assert.NotEmpty(t, denied.Message)
}

func TestCheckActionExplicitCapabilityTakesPrecedence(t *testing.T) {
	engine := NewPermissionEngine(staticRole(roleWithCapabilities(
		identity.RoleTypeUser, "reports:export")))

	// explicit capability wins even though the pair would be denied
	decision := engine.CheckAction(ActionCheck{
		Capability: "reports:export",
		EntityType: "invoice",
		ActionType: "delete",
	})
	assert.True(t, decision.Allowed)

	// and a missing explicit capability is not rescued by the pair
	decision = engine.CheckAction(ActionCheck{
		Capability: "reports:schedule",
		EntityType: "invoice",
		ActionType: "view",
	})
	assert.False(t, decision.Allowed)
}

func TestCheckActionCustomDenialMessage(t *testing.T) {
	engine := NewPermissionEngine(staticRole(roleWithCapabilities(identity.RoleTypeUser)))

	decision := engine.CheckAction(ActionCheck{
		EntityType: "invoice",
		ActionType: "delete",
		Message:    "Ask an administrator to remove invoices",
	})
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Ask an administrator to remove invoices", decision.Message)
}

func TestCanPerformAllAndAny(t *testing.T) {
	engine := NewPermissionEngine(staticRole(roleWithCapabilities(
		identity.RoleTypeUser, "invoice:view", "invoice:edit")))

	view, err := identity.NewPermissionFromCode("invoice:view")
	require.NoError(t, err)
	edit, err := identity.NewPermissionFromCode("invoice:edit")
	require.NoError(t, err)
	del, err := identity.NewPermissionFromCode("invoice:delete")
	require.NoError(t, err)

	assert.True(t, engine.CanPerformAll([]identity.Permission{view, edit}))
	assert.False(t, engine.CanPerformAll([]identity.Permission{view, del}))
	assert.True(t, engine.CanPerformAny([]identity.Permission{del, view}))
	assert.False(t, engine.CanPerformAny([]identity.Permission{del}))
}

func TestDecisionsArePureFunctionsOfSnapshot(t *testing.T) {
	// swapping the snapshot swaps every decision with it, with no
	// residue from earlier calls
	current := roleWithCapabilities(identity.RoleTypeUser, "invoice:view")
	engine := NewPermissionEngine(func() identity.RoleDescriptor { return current })

	assert.True(t, engine.CanView(identity.EntityInvoice))
	assert.False(t, engine.CanEdit(identity.EntityInvoice))

	current = roleWithCapabilities(identity.RoleTypeUser, "invoice:edit")
	assert.False(t, engine.CanView(identity.EntityInvoice))
	assert.True(t, engine.CanEdit(identity.EntityInvoice))
}
