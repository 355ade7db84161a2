package identity

import (
	"strings"

	"github.com/erp/console/internal/domain/shared"
)

// RoleType classifies a role tag into one of the known categories
type RoleType string

const (
	RoleTypeUser         RoleType = "user"
	RoleTypeAdmin        RoleType = "admin"
	RoleTypeAccountant   RoleType = "accountant"
	RoleTypeStockManager RoleType = "stock_manager"
	RoleTypeSuperAdmin   RoleType = "super_admin"
)

// Predefined entity types covered by entity/action permissions
const (
	EntityQuotation    = "quotation"
	EntityInvoice      = "invoice"
	EntityCreditNote   = "credit_note"
	EntityProforma     = "proforma"
	EntityCustomer     = "customer"
	EntityInventory    = "inventory"
	EntityDeliveryNote = "delivery_note"
	EntityLPO          = "lpo"
	EntityRemittance   = "remittance"
	EntityPayment      = "payment"
)

// Predefined action types
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// allEntities lists every entity type gated by the permission engine
var allEntities = []string{
	EntityQuotation,
	EntityInvoice,
	EntityCreditNote,
	EntityProforma,
	EntityCustomer,
	EntityInventory,
	EntityDeliveryNote,
	EntityLPO,
	EntityRemittance,
	EntityPayment,
}

var allActions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}

// Permission represents a capability token (entity:action pattern)
// It is a value object
type Permission struct {
	Code   string // e.g., "invoice:edit"
	Entity string // e.g., "invoice"
	Action string // e.g., "edit"
}

// NewPermission creates a new Permission value object
func NewPermission(entity, action string) (Permission, error) {
	entity = strings.ToLower(strings.TrimSpace(entity))
	action = strings.ToLower(strings.TrimSpace(action))

	if entity == "" {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION_ENTITY", "Permission entity cannot be empty")
	}
	if action == "" {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION_ACTION", "Permission action cannot be empty")
	}

	return Permission{
		Code:   entity + ":" + action,
		Entity: entity,
		Action: action,
	}, nil
}

// NewPermissionFromCode creates a Permission from a code string (e.g., "invoice:edit")
func NewPermissionFromCode(code string) (Permission, error) {
	parts := strings.SplitN(code, ":", 2)
	if len(parts) != 2 {
		return Permission{}, shared.NewDomainError("INVALID_PERMISSION_CODE", "Permission code must be in format 'entity:action'")
	}
	return NewPermission(parts[0], parts[1])
}

// Equals checks if two permissions are equal
func (p Permission) Equals(other Permission) bool {
	return p.Code == other.Code
}

// IsEmpty returns true if the permission is empty
func (p Permission) IsEmpty() bool {
	return p.Code == ""
}

// RoleDescriptor is the derived classification of an identity's role
// tag plus its capability set. It is recomputed whenever the identity
// changes and never mutated in place, so a decision is always a pure
// function of (descriptor, permission).
type RoleDescriptor struct {
	Name         string
	RoleType     RoleType
	Capabilities map[string]struct{} // permission codes
	IsDefault    bool
}

// Has reports whether the descriptor's capability set contains the
// permission code. The super_admin override lives in the permission
// engine, not here.
func (d RoleDescriptor) Has(code string) bool {
	_, ok := d.Capabilities[code]
	return ok
}

// IsSuperAdmin reports whether the role carries the cross-tenant
// override. Matching is on the exact role type, not a case-folded
// name comparison.
func (d RoleDescriptor) IsSuperAdmin() bool {
	return d.RoleType == RoleTypeSuperAdmin
}

// IsAdmin reports whether the role type is admin or super_admin
func (d RoleDescriptor) IsAdmin() bool {
	return d.RoleType == RoleTypeAdmin || d.RoleType == RoleTypeSuperAdmin
}

// Resolve maps an authenticated identity to its RoleDescriptor.
// A nil identity or an identity without a role tag resolves to the
// default descriptor: RoleTypeUser with an empty capability set.
func Resolve(ctx *AuthContext) RoleDescriptor {
	if ctx == nil || strings.TrimSpace(ctx.Role) == "" {
		return RoleDescriptor{
			Name:         "",
			RoleType:     RoleTypeUser,
			Capabilities: map[string]struct{}{},
			IsDefault:    true,
		}
	}

	tag := strings.TrimSpace(ctx.Role)
	roleType := classifyRole(tag)

	caps := make(map[string]struct{})
	for _, code := range defaultCapabilities[roleType] {
		caps[code] = struct{}{}
	}
	// Elevated defaults are layered under any explicit grants, so an
	// explicit grant can only widen, never narrow, the default set.
	for _, code := range explicitGrants[tag] {
		caps[code] = struct{}{}
	}

	return RoleDescriptor{
		Name:         tag,
		RoleType:     roleType,
		Capabilities: caps,
	}
}

// classifyRole maps a raw role tag to a RoleType using exact matching.
// Unknown tags classify as plain users with no capabilities beyond
// their explicit grants.
func classifyRole(tag string) RoleType {
	switch RoleType(tag) {
	case RoleTypeAdmin, RoleTypeAccountant, RoleTypeStockManager, RoleTypeSuperAdmin:
		return RoleType(tag)
	default:
		return RoleTypeUser
	}
}

// defaultCapabilities holds the elevated capability defaults per role
// type. Admin and super_admin receive every entity/action pair;
// super_admin additionally bypasses the capability check entirely in
// the permission engine.
var defaultCapabilities = map[RoleType][]string{}

// explicitGrants holds fine-grained per-tag grants layered over the
// role-type defaults. Tags issued by the provider that are not role
// types land here.
var explicitGrants = map[string][]string{}

func init() {
	full := make([]string, 0, len(allEntities)*len(allActions))
	for _, entity := range allEntities {
		for _, action := range allActions {
			full = append(full, entity+":"+action)
		}
	}
	defaultCapabilities[RoleTypeAdmin] = full
	defaultCapabilities[RoleTypeSuperAdmin] = full

	defaultCapabilities[RoleTypeAccountant] = permutations(
		[]string{EntityInvoice, EntityCreditNote, EntityProforma, EntityRemittance, EntityPayment},
		allActions,
		EntityCustomer+":"+ActionView,
		EntityQuotation+":"+ActionView,
	)

	defaultCapabilities[RoleTypeStockManager] = permutations(
		[]string{EntityInventory, EntityDeliveryNote, EntityLPO},
		allActions,
		EntityQuotation+":"+ActionView,
		EntityInvoice+":"+ActionView,
	)

	defaultCapabilities[RoleTypeUser] = permutations(
		nil,
		nil,
		EntityQuotation+":"+ActionView,
		EntityInvoice+":"+ActionView,
		EntityCustomer+":"+ActionView,
	)

	// auditor: sees every document type, changes nothing
	explicitGrants["auditor"] = permutations(allEntities, []string{ActionView})
}

// permutations builds entity x action codes plus any extra codes
func permutations(entities, actions []string, extra ...string) []string {
	codes := make([]string, 0, len(entities)*len(actions)+len(extra))
	for _, entity := range entities {
		for _, action := range actions {
			codes = append(codes, entity+":"+action)
		}
	}
	return append(codes, extra...)
}
