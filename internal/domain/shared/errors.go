package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// Messages carry provider specifics, so logic must branch on code only.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidCredentials   = NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	ErrProviderUnreachable  = NewDomainError("PROVIDER_UNREACHABLE", "Identity provider could not be reached")
	ErrSessionExpired       = NewDomainError("SESSION_EXPIRED", "Session has expired")
	ErrPermissionDenied     = NewDomainError("PERMISSION_DENIED", "Not authorized to perform this action")
	ErrTenantNotFound       = NewDomainError("TENANT_NOT_FOUND", "Company not found in accessible companies")
	ErrUnknownProviderError = NewDomainError("UNKNOWN_PROVIDER_ERROR", "Identity provider returned an unknown error")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
)
