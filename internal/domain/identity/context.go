package identity

// AuthContext is an immutable snapshot of the authenticated actor.
// A new snapshot replaces the previous one wholesale on every session
// change; fields are never patched in place, so concurrent observers
// can never see a torn read.
type AuthContext struct {
	UserID      string
	Email       string
	Role        string // raw role tag as issued by the identity provider
	CompanyID   string // currently active tenant
	DisplayName string
}

// Company is a tenant boundary for data access. A user may belong to
// one or more companies; every scoped read and write carries exactly
// one company id.
type Company struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
}
