package identity

import "github.com/erp/console/internal/domain/identity"

// SignInInput contains credentials for an interactive sign-in
type SignInInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// SignUpInput contains input for account registration
type SignUpInput struct {
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=8"`
	DisplayName string `validate:"omitempty,max=200"`
}

// ResetPasswordInput contains input for a password reset request
type ResetPasswordInput struct {
	Email string `validate:"required,email"`
}

// UpdatePasswordInput contains input for setting a new password
type UpdatePasswordInput struct {
	UserID      string `validate:"required"`
	NewPassword string `validate:"required,min=8"`
}

// SignInResult is returned on a successful sign-in
type SignInResult struct {
	Identity *identity.AuthContext
}

// SignUpResult is returned on a successful registration. Identity is
// nil when the provider requires follow-up verification before
// issuing a session.
type SignUpResult struct {
	Identity             *identity.AuthContext
	RequiresVerification bool
}
