package identity

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/console/internal/domain/identity"
	"github.com/erp/console/internal/domain/shared"
)

// CachedSession is the locally persisted remnant of a session, enough
// to restore it across restarts.
type CachedSession struct {
	UserID       string
	RefreshToken string
	CompanyID    string // last active company
}

// SessionCache persists the refresh token and tenant selection across
// process restarts. Implementations must tolerate concurrent calls.
type SessionCache interface {
	// Load returns the cached session, or (nil, nil) when none exists
	Load(ctx context.Context) (*CachedSession, error)
	Save(ctx context.Context, session CachedSession) error
	Clear(ctx context.Context) error
	// SaveActiveCompany updates only the persisted company selection
	SaveActiveCompany(ctx context.Context, companyID string) error
}

// ConnectivitySource reports whether the persistence API is believed
// reachable. The signal is advisory: it gates only the periodic
// background refresh, never a user-initiated operation.
type ConnectivitySource interface {
	Online() bool
}

// AuthManagerConfig contains configuration for the auth manager
type AuthManagerConfig struct {
	// RefreshInterval is the minimum spacing between background
	// session refresh attempts, regardless of how often MaybeRefresh
	// is invoked.
	RefreshInterval time.Duration
}

// DefaultAuthManagerConfig returns default configuration
func DefaultAuthManagerConfig() AuthManagerConfig {
	return AuthManagerConfig{
		RefreshInterval: 5 * time.Minute,
	}
}

// AuthManager orchestrates sign-in, sign-up, sign-out and password
// operations against the identity provider, and is the only writer of
// the SessionStore.
//
// Every provider round-trip is tagged with a monotonic request id; a
// completion older than the last accepted one is discarded, so a
// stale in-flight resolution can never clobber a later state change
// (e.g. a GetSession resolving after a SignOut already cleared the
// store). Superseded round-trips are not aborted, only ignored.
type AuthManager struct {
	provider identity.Provider
	store    *SessionStore
	tenants  *TenantScope
	cache    SessionCache // optional
	config   AuthManagerConfig
	validate *validator.Validate
	logger   *zap.Logger

	mu           sync.Mutex
	seq          uint64
	lastAccepted uint64
	lastRefresh  time.Time
	unsubscribe  func()
}

// NewAuthManager creates a new auth manager. cache may be nil when no
// local persistence is wanted.
func NewAuthManager(
	provider identity.Provider,
	store *SessionStore,
	tenants *TenantScope,
	cache SessionCache,
	config AuthManagerConfig,
	logger *zap.Logger,
) *AuthManager {
	return &AuthManager{
		provider: provider,
		store:    store,
		tenants:  tenants,
		cache:    cache,
		config:   config,
		validate: validator.New(),
		logger:   logger,
	}
}

// Start subscribes to the provider's push channel. The manager owns
// the single provider subscription; internal consumers observe the
// SessionStore instead of subscribing to the provider directly.
func (m *AuthManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.provider.OnAuthStateChange(m.handleAuthStateEvent)
}

// Stop removes the provider subscription
func (m *AuthManager) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// GetSession resolves the currently active session, replaying the
// cached refresh token if one survives from an earlier run. On
// provider failure it returns a non-fatal error and leaves the store
// untouched, so the application falls back to its well-defined
// unauthenticated state.
func (m *AuthManager) GetSession(ctx context.Context) (*identity.AuthContext, error) {
	reqID := m.begin()

	var refreshToken string
	if m.cache != nil {
		cached, err := m.cache.Load(ctx)
		if err != nil {
			m.logger.Warn("Failed to load cached session", zap.Error(err))
		} else if cached != nil {
			refreshToken = cached.RefreshToken
		}
	}

	session, err := m.provider.GetSession(ctx, refreshToken)
	if err != nil {
		m.logger.Warn("Session resolution failed", zap.Error(err))
		return nil, m.mapProviderError(err)
	}

	if !m.accept(reqID) {
		m.logger.Debug("Discarding stale session resolution",
			zap.Uint64("request_id", reqID))
		return m.store.Current(), nil
	}

	m.applySession(ctx, session)
	m.logger.Info("Session resolved",
		zap.String("user_id", session.Identity.UserID))

	return session.Identity, nil
}

// SignIn authenticates with the provider and, on success, installs
// the returned identity. Concurrent calls are not de-duplicated; each
// result reflects its own provider round-trip.
func (m *AuthManager) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	if err := m.validate.Struct(input); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Email and password are required")
	}

	reqID := m.begin()

	session, err := m.provider.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		m.logger.Warn("Sign-in failed", zap.String("email", input.Email), zap.Error(err))
		return nil, m.mapProviderError(err)
	}

	if m.accept(reqID) {
		m.applySession(ctx, session)
	}

	m.logger.Info("User signed in",
		zap.String("user_id", session.Identity.UserID),
		zap.String("company_id", session.Identity.CompanyID))

	return &SignInResult{Identity: session.Identity}, nil
}

// SignUp registers a new account. The identity is installed only when
// the provider returns an active session; otherwise the result
// signals that follow-up verification is required.
func (m *AuthManager) SignUp(ctx context.Context, input SignUpInput) (*SignUpResult, error) {
	if err := m.validate.Struct(input); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "A valid email and a password of at least 8 characters are required")
	}

	reqID := m.begin()

	result, err := m.provider.SignUp(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		m.logger.Warn("Sign-up failed", zap.String("email", input.Email), zap.Error(err))
		return nil, m.mapProviderError(err)
	}

	out := &SignUpResult{RequiresVerification: result.RequiresVerification}
	if result.Session != nil {
		if m.accept(reqID) {
			m.applySession(ctx, result.Session)
		}
		out.Identity = result.Session.Identity
	}

	m.logger.Info("User signed up",
		zap.String("email", input.Email),
		zap.Bool("requires_verification", result.RequiresVerification))

	return out, nil
}

// SignOut revokes the session with the provider and unconditionally
// clears local state. A failed remote revoke is surfaced as a warning
// only; local state must never remain signed in after a
// user-initiated sign-out.
func (m *AuthManager) SignOut(ctx context.Context) error {
	reqID := m.begin()

	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("Provider sign-out failed, clearing local session anyway", zap.Error(err))
	}

	m.accept(reqID)
	m.store.Set(nil)
	m.tenants.Reset()
	if m.cache != nil {
		if err := m.cache.Clear(ctx); err != nil {
			m.logger.Warn("Failed to clear cached session", zap.Error(err))
		}
	}

	m.logger.Info("User signed out")
	return nil
}

// ResetPassword requests a password reset email. It never touches the
// session store.
func (m *AuthManager) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := m.validate.Struct(input); err != nil {
		return shared.NewDomainError("INVALID_INPUT", "A valid email is required")
	}
	if err := m.provider.ResetPassword(ctx, input.Email); err != nil {
		m.logger.Warn("Password reset request failed", zap.String("email", input.Email), zap.Error(err))
		return m.mapProviderError(err)
	}
	m.logger.Info("Password reset requested", zap.String("email", input.Email))
	return nil
}

// UpdatePassword sets a new password for a user. A password change
// does not implicitly change the active session; if the provider
// issues a new one it arrives through the push channel.
func (m *AuthManager) UpdatePassword(ctx context.Context, input UpdatePasswordInput) error {
	if err := m.validate.Struct(input); err != nil {
		return shared.NewDomainError("INVALID_INPUT", "User id and a password of at least 8 characters are required")
	}
	if err := m.provider.UpdatePassword(ctx, input.UserID, input.NewPassword); err != nil {
		m.logger.Warn("Password update failed", zap.String("user_id", input.UserID), zap.Error(err))
		return m.mapProviderError(err)
	}
	m.logger.Info("Password updated", zap.String("user_id", input.UserID))
	return nil
}

// CurrentRole resolves the role descriptor for the identity currently
// held by the store.
func (m *AuthManager) CurrentRole() identity.RoleDescriptor {
	return identity.Resolve(m.store.Current())
}

// MaybeRefresh attempts a background session refresh. At most one
// attempt is made per configured interval no matter how often it is
// called, and the attempt is skipped while the connectivity signal
// reports the API unreachable. connectivity may be nil.
func (m *AuthManager) MaybeRefresh(ctx context.Context, connectivity ConnectivitySource) {
	if m.store.Current() == nil {
		return
	}
	if connectivity != nil && !connectivity.Online() {
		m.logger.Debug("Skipping session refresh, API unreachable")
		return
	}

	m.mu.Lock()
	if time.Since(m.lastRefresh) < m.config.RefreshInterval {
		m.mu.Unlock()
		return
	}
	m.lastRefresh = time.Now()
	m.mu.Unlock()

	if _, err := m.GetSession(ctx); err != nil {
		m.logger.Warn("Background session refresh failed", zap.Error(err))
	}
}

// handleAuthStateEvent applies out-of-band provider events (expiry,
// external sign-out, token refresh). Push events carry the newest
// provider state, so they always advance the request-id guard.
func (m *AuthManager) handleAuthStateEvent(event identity.AuthStateEvent) {
	reqID := m.begin()
	m.accept(reqID)

	ctx := context.Background()

	switch event.Type {
	case identity.AuthStateSignedOut:
		m.logger.Info("Provider reported sign-out")
		m.store.Set(nil)
		m.tenants.Reset()
		if m.cache != nil {
			if err := m.cache.Clear(ctx); err != nil {
				m.logger.Warn("Failed to clear cached session", zap.Error(err))
			}
		}
	case identity.AuthStateSignedIn, identity.AuthStateTokenRefreshed:
		if event.Session == nil || event.Session.Identity == nil {
			return
		}
		m.logger.Info("Provider pushed session change",
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.Session.Identity.UserID))
		m.applySession(ctx, event.Session)
	}
}

// applySession installs an accepted session: store first, then tenant
// scope, then the local cache.
func (m *AuthManager) applySession(ctx context.Context, session *identity.Session) {
	m.store.Set(session.Identity)

	// A live in-session selection outranks the persisted one and the
	// token's company claim; a background refresh never moves the
	// active company while it remains accessible.
	var preferred []string
	if current := m.tenants.Current(); current != nil {
		preferred = append(preferred, current.ID)
	}
	if m.cache != nil {
		if cached, err := m.cache.Load(ctx); err == nil && cached != nil && cached.CompanyID != "" {
			preferred = append(preferred, cached.CompanyID)
		}
	}
	preferred = append(preferred, session.Identity.CompanyID)
	m.tenants.Load(session.Companies, preferred...)

	if m.cache != nil {
		companyID := ""
		if current := m.tenants.Current(); current != nil {
			companyID = current.ID
		}
		err := m.cache.Save(ctx, CachedSession{
			UserID:       session.Identity.UserID,
			RefreshToken: session.RefreshToken,
			CompanyID:    companyID,
		})
		if err != nil {
			m.logger.Warn("Failed to persist session", zap.Error(err))
		}
	}
}

// begin allocates the next request id for a provider round-trip
func (m *AuthManager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

// accept reports whether the round-trip with the given id may apply
// its result. A completion older than the last accepted one is
// discarded rather than aborted.
func (m *AuthManager) accept(reqID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reqID < m.lastAccepted {
		return false
	}
	m.lastAccepted = reqID
	return true
}

// mapProviderError normalizes provider failures onto the shared error
// taxonomy. Domain errors pass through so their kind and message
// survive; transport failures become PROVIDER_UNREACHABLE.
func (m *AuthManager) mapProviderError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return shared.NewDomainError("PROVIDER_UNREACHABLE", "Identity provider could not be reached: "+err.Error())
	}

	return shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", err.Error())
}
