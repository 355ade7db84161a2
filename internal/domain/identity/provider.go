package identity

import (
	"context"
	"time"
)

// Session is the payload the identity provider returns on a successful
// session resolution or sign-in.
type Session struct {
	Identity     *AuthContext
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Companies    []Company // companies the identity may access
}

// SignUpResult reports the outcome of an account registration.
// Whether a new account requires follow-up verification is provider
// policy; the core stays agnostic and only forwards the signal.
type SignUpResult struct {
	Session              *Session // nil unless the provider returned an active session
	RequiresVerification bool
}

// AuthStateEventType categorizes push events from the provider
type AuthStateEventType string

const (
	AuthStateSignedIn       AuthStateEventType = "signed_in"
	AuthStateSignedOut      AuthStateEventType = "signed_out"
	AuthStateTokenRefreshed AuthStateEventType = "token_refreshed"
)

// AuthStateEvent is an out-of-band session change pushed by the
// provider (expiry, external sign-out, token refresh).
type AuthStateEvent struct {
	Type    AuthStateEventType
	Session *Session // nil for signed_out
}

// Provider is the external identity/session collaborator. Every
// operation returns either a payload or an error object; none panics
// across this boundary. Errors are mapped onto the shared taxonomy
// before they reach callers of the core.
type Provider interface {
	// GetSession resolves the currently active session, replaying the
	// given refresh token when the provider has no live session.
	GetSession(ctx context.Context, refreshToken string) (*Session, error)

	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*SignUpResult, error)
	SignOut(ctx context.Context) error

	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, userID, newPassword string) error

	// OnAuthStateChange registers a callback for out-of-band session
	// changes. The returned function removes the registration.
	OnAuthStateChange(fn func(AuthStateEvent)) (unsubscribe func())
}
