package identity

import (
	"github.com/erp/console/internal/domain/identity"
)

// RoleSource yields the role descriptor derived from the current
// identity snapshot. The AuthManager's CurrentRole method satisfies
// this signature.
type RoleSource func() identity.RoleDescriptor

// ActionCheck describes a gated UI action. An explicit Capability
// code takes precedence; the entity/action pair is the fallback, so
// fine-grained overrides stay expressible without touching the coarse
// mapping.
type ActionCheck struct {
	Capability string // explicit permission code, e.g. "invoice:edit"
	EntityType string
	ActionType string
	Message    string // optional custom denial message
}

// ActionDecision is the result of an action check. The caller owns
// the denial notification; the engine only decides.
type ActionDecision struct {
	Allowed bool
	Message string
}

// PermissionEngine centralizes every role/capability decision so no
// caller re-implements policy. Decisions are pure functions of the
// role descriptor snapshot and the permission; the engine caches
// nothing across identity changes.
type PermissionEngine struct {
	role RoleSource
}

// NewPermissionEngine creates a permission engine over the given role
// source.
func NewPermissionEngine(role RoleSource) *PermissionEngine {
	return &PermissionEngine{role: role}
}

// Can reports whether the current role may exercise the permission.
// A super_admin role passes unconditionally regardless of its
// explicit capability set.
func (e *PermissionEngine) Can(perm identity.Permission) bool {
	return e.canCode(perm.Code)
}

// CanCode is Can for a raw permission code
func (e *PermissionEngine) CanCode(code string) bool {
	return e.canCode(code)
}

// CanView reports whether the current role may view the entity type
func (e *PermissionEngine) CanView(entityType string) bool {
	return e.canPair(entityType, identity.ActionView)
}

// CanCreate reports whether the current role may create the entity type
func (e *PermissionEngine) CanCreate(entityType string) bool {
	return e.canPair(entityType, identity.ActionCreate)
}

// CanEdit reports whether the current role may edit the entity type
func (e *PermissionEngine) CanEdit(entityType string) bool {
	return e.canPair(entityType, identity.ActionEdit)
}

// CanDelete reports whether the current role may delete the entity type
func (e *PermissionEngine) CanDelete(entityType string) bool {
	return e.canPair(entityType, identity.ActionDelete)
}

// CanPerformAll reports whether every permission is granted
func (e *PermissionEngine) CanPerformAll(perms []identity.Permission) bool {
	for _, perm := range perms {
		if !e.Can(perm) {
			return false
		}
	}
	return true
}

// CanPerformAny reports whether at least one permission is granted
func (e *PermissionEngine) CanPerformAny(perms []identity.Permission) bool {
	for _, perm := range perms {
		if e.Can(perm) {
			return true
		}
	}
	return false
}

// CheckAction evaluates a gated action. The explicit capability is
// consulted first, then the entity/action pair. Denials carry a
// human-readable message; they are never raised as errors.
func (e *PermissionEngine) CheckAction(check ActionCheck) ActionDecision {
	var allowed bool
	switch {
	case check.Capability != "":
		allowed = e.canCode(check.Capability)
	default:
		allowed = e.canPair(check.EntityType, check.ActionType)
	}

	if allowed {
		return ActionDecision{Allowed: true}
	}

	message := check.Message
	if message == "" {
		message = denialMessage(check)
	}
	return ActionDecision{Allowed: false, Message: message}
}

func (e *PermissionEngine) canCode(code string) bool {
	role := e.role()
	if role.IsSuperAdmin() {
		return true
	}
	return role.Has(code)
}

func (e *PermissionEngine) canPair(entityType, actionType string) bool {
	perm, err := identity.NewPermission(entityType, actionType)
	if err != nil {
		return false
	}
	return e.canCode(perm.Code)
}

func denialMessage(check ActionCheck) string {
	if check.EntityType != "" && check.ActionType != "" {
		return "You do not have permission to " + check.ActionType + " " + check.EntityType + " records"
	}
	if check.Capability != "" {
		return "You do not have the " + check.Capability + " permission"
	}
	return "You do not have permission to perform this action"
}
