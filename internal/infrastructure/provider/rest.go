// Package provider implements the identity-provider interface against
// the remote persistence API's auth endpoints. All failures are
// returned as domain errors carrying the provider's message; nothing
// panics across this boundary.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/console/internal/domain/identity"
	"github.com/erp/console/internal/domain/shared"
)

// Config holds REST provider settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RestProvider talks to the remote auth API. It holds the live token
// pair so sign-out and scoped reads can authenticate, and it owns the
// push channel through which out-of-band session changes (expiry
// discovered on refresh, remote revocation) reach the core.
type RestProvider struct {
	config Config
	client *http.Client
	logger *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	nextSubID    uint64
	subs         map[uint64]func(identity.AuthStateEvent)
}

// NewRestProvider creates a provider for the given API
func NewRestProvider(config Config, logger *zap.Logger) *RestProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RestProvider{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		subs:   make(map[uint64]func(identity.AuthStateEvent)),
	}
}

// tokenResponse is the wire shape of a successful token grant
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Metadata struct {
			DisplayName string `json:"display_name"`
		} `json:"user_metadata"`
	} `json:"user"`
}

// errorResponse is the wire shape of an auth API failure
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

// accessClaims are the custom claims embedded in the access token
type accessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// GetSession resolves the active session, replaying the refresh token
// when provided. A rejected refresh token is reported as
// SESSION_EXPIRED and also pushed as a signed_out event, since the
// session died out-of-band. A successful resume is only returned to
// the caller; no push event fires for a change the caller itself
// applies.
func (p *RestProvider) GetSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if refreshToken == "" {
		p.mu.Lock()
		refreshToken = p.refreshToken
		p.mu.Unlock()
	}
	if refreshToken == "" {
		return nil, shared.NewDomainError("SESSION_EXPIRED", "No session to resume")
	}

	body := map[string]string{"refresh_token": refreshToken}
	var result tokenResponse
	status, err := p.post(ctx, "/auth/v1/token?grant_type=refresh_token", body, "", &result)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		p.clearTokens()
		p.emit(identity.AuthStateEvent{Type: identity.AuthStateSignedOut})
		return nil, shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please sign in again")
	}

	return p.buildSession(ctx, &result)
}

// SignIn exchanges credentials for a session
func (p *RestProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var result tokenResponse
	status, err := p.post(ctx, "/auth/v1/token?grant_type=password", body, "", &result)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	return p.buildSession(ctx, &result)
}

// SignUp registers a new account. Providers that require email
// verification return no token pair; that surfaces as
// RequiresVerification with a nil session.
func (p *RestProvider) SignUp(ctx context.Context, email, password, displayName string) (*identity.SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if displayName != "" {
		body["data"] = map[string]string{"display_name": displayName}
	}

	var result tokenResponse
	status, err := p.post(ctx, "/auth/v1/signup", body, "", &result)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", "Registration was rejected by the identity provider")
	}

	if result.AccessToken == "" {
		return &identity.SignUpResult{RequiresVerification: true}, nil
	}

	session, err := p.buildSession(ctx, &result)
	if err != nil {
		return nil, err
	}
	return &identity.SignUpResult{Session: session}, nil
}

// SignOut revokes the session remotely and drops the held tokens
// regardless of the revoke outcome.
func (p *RestProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.accessToken
	p.mu.Unlock()

	defer p.clearTokens()

	if token == "" {
		return nil
	}
	status, err := p.post(ctx, "/auth/v1/logout", nil, token, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest && status != http.StatusUnauthorized {
		return shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", fmt.Sprintf("Sign-out was rejected with status %d", status))
	}
	return nil
}

// ResetPassword requests a password reset email
func (p *RestProvider) ResetPassword(ctx context.Context, email string) error {
	status, err := p.post(ctx, "/auth/v1/recover", map[string]string{"email": email}, "", nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", fmt.Sprintf("Password reset was rejected with status %d", status))
	}
	return nil
}

// UpdatePassword sets a new password for the given user
func (p *RestProvider) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	p.mu.Lock()
	token := p.accessToken
	p.mu.Unlock()

	body := map[string]string{"user_id": userID, "password": newPassword}
	status, err := p.put(ctx, "/auth/v1/user", body, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please sign in again")
	}
	if status >= http.StatusBadRequest {
		return shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", fmt.Sprintf("Password update was rejected with status %d", status))
	}
	return nil
}

// OnAuthStateChange registers a push callback
func (p *RestProvider) OnAuthStateChange(fn func(identity.AuthStateEvent)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// buildSession turns a token grant into a Session: decode the access
// token claims into the identity snapshot, then fetch the accessible
// companies under the new token.
func (p *RestProvider) buildSession(ctx context.Context, grant *tokenResponse) (*identity.Session, error) {
	if grant.AccessToken == "" {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", "Identity provider returned no access token")
	}

	claims := &accessClaims{}
	// Signature verification is the server's concern; the client only
	// decodes claims it was handed over TLS.
	if _, _, err := jwt.NewParser().ParseUnverified(grant.AccessToken, claims); err != nil {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", "Identity provider returned a malformed access token")
	}

	authCtx := &identity.AuthContext{
		UserID:      grant.User.ID,
		Email:       grant.User.Email,
		Role:        claims.Role,
		CompanyID:   claims.CompanyID,
		DisplayName: grant.User.Metadata.DisplayName,
	}
	if authCtx.UserID == "" && claims.Subject != "" {
		authCtx.UserID = claims.Subject
	}
	if authCtx.Email == "" {
		authCtx.Email = claims.Email
	}
	if authCtx.DisplayName == "" {
		authCtx.DisplayName = claims.Name
	}

	p.mu.Lock()
	p.accessToken = grant.AccessToken
	p.refreshToken = grant.RefreshToken
	p.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	companies, err := p.fetchCompanies(ctx, grant.AccessToken)
	if err != nil {
		// A session without its company list is unusable for scoped work
		return nil, err
	}

	return &identity.Session{
		Identity:     authCtx,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    expiresAt,
		Companies:    companies,
	}, nil
}

// fetchCompanies loads the companies the identity may access
func (p *RestProvider) fetchCompanies(ctx context.Context, token string) ([]identity.Company, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/rest/v1/companies", nil)
	if err != nil {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", err.Error())
	}
	p.decorate(req, token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, shared.NewDomainError("PROVIDER_UNREACHABLE", "Could not reach the persistence API: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", fmt.Sprintf("Company list request failed with status %d", resp.StatusCode))
	}

	var companies []identity.Company
	if err := json.NewDecoder(resp.Body).Decode(&companies); err != nil {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", "Malformed company list response")
	}
	return companies, nil
}

// post issues a JSON POST and decodes the response into out when the
// call succeeds. Client-level errors (4xx) are returned as statuses
// for the caller to map; transport failures become domain errors.
func (p *RestProvider) post(ctx context.Context, path string, body any, token string, out any) (int, error) {
	return p.do(ctx, http.MethodPost, path, body, token, out)
}

func (p *RestProvider) put(ctx context.Context, path string, body any, token string) (int, error) {
	return p.do(ctx, http.MethodPut, path, body, token, nil)
}

func (p *RestProvider) do(ctx context.Context, method, path string, body any, token string, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", err.Error())
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
	if err != nil {
		return 0, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", err.Error())
	}
	p.decorate(req, token)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, shared.NewDomainError("PROVIDER_UNREACHABLE", "Could not reach the identity provider: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, shared.NewDomainError("PROVIDER_UNREACHABLE", fmt.Sprintf("Identity provider failed with status %d", resp.StatusCode))
	}

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, shared.NewDomainError("UNKNOWN_PROVIDER_ERROR", "Malformed identity provider response")
		}
	} else if resp.StatusCode >= http.StatusBadRequest {
		p.logFailure(resp)
	}

	return resp.StatusCode, nil
}

// decorate attaches the API key, bearer token and a correlation id
func (p *RestProvider) decorate(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.config.APIKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// logFailure drains an error body for the log without surfacing it
func (p *RestProvider) logFailure(resp *http.Response) {
	var apiErr errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err != nil {
		return
	}
	message := apiErr.Description
	if message == "" {
		message = apiErr.Message
	}
	p.logger.Debug("Identity provider rejected request",
		zap.Int("status", resp.StatusCode),
		zap.String("error", apiErr.Error),
		zap.String("message", message))
}

func (p *RestProvider) clearTokens() {
	p.mu.Lock()
	p.accessToken = ""
	p.refreshToken = ""
	p.mu.Unlock()
}

// emit fans a push event out to all registered callbacks
func (p *RestProvider) emit(event identity.AuthStateEvent) {
	p.mu.Lock()
	callbacks := make([]func(identity.AuthStateEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		callbacks = append(callbacks, fn)
	}
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}
