package meli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
	"github.com/donaldgifford/meli-harvester/pkg/logger"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const (
	defaultAPIBase      = "https://api.mercadolibre.com"
	tokenPath           = "/oauth/token" //nolint:gosec // endpoint path, not a credential
	safetyMargin        = 5 * time.Minute
	tokenRequestTimeout = 10 * time.Second
)

// TokenStore persists the rotating refresh token so a restart does not
// fall back to a refresh token the provider has already invalidated.
type TokenStore interface {
	LoadRefreshToken(ctx context.Context) (string, error)
	SaveTokens(ctx context.Context, refreshToken string, expiresAt time.Time) error
}

// tokenState is replaced as a whole on every refresh and never mutated,
// so readers always see a matching token/expiry/refresh triple.
type tokenState struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// TokenManager owns the bearer token for one seller account. It refreshes
// the token when it is missing or within five minutes of expiry, and
// rotates the refresh token on every successful exchange. Concurrent
// refreshes collapse into one request. Once the provider rejects the
// refresh token, every later call fails with ErrAuthExpired without
// contacting the token endpoint again.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	store        TokenStore
	log          *slog.Logger
	nowFunc      func() time.Time

	state      atomic.Pointer[tokenState]
	expired    atomic.Pointer[AuthError]
	group      singleflight.Group
	exchangeMu sync.Mutex
	loadMu     sync.Mutex
	loaded     bool
	refresh    atomic.Int64
}

// TokenOption configures the TokenManager.
type TokenOption func(*TokenManager)

// WithAPIBase points the token endpoint at another host.
func WithAPIBase(base string) TokenOption {
	return func(m *TokenManager) {
		m.tokenURL = strings.TrimRight(base, "/") + tokenPath
	}
}

// WithTokenURL overrides the default token endpoint.
func WithTokenURL(u string) TokenOption {
	return func(m *TokenManager) {
		m.tokenURL = u
	}
}

// WithTokenHTTPClient overrides the default HTTP client.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.client = c
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.nowFunc = f
	}
}

// WithTokenStore persists rotated refresh tokens.
func WithTokenStore(s TokenStore) TokenOption {
	return func(m *TokenManager) {
		m.store = s
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(l *slog.Logger) TokenOption {
	return func(m *TokenManager) {
		m.log = l
	}
}

// NewTokenManager creates a TokenManager seeded with the configured
// refresh token.
func NewTokenManager(creds domain.Credentials, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		clientID:     creds.ClientID,
		clientSecret: creds.ClientSecret,
		tokenURL:     defaultAPIBase + tokenPath,
		client:       &http.Client{Timeout: tokenRequestTimeout},
		log:          slog.Default(),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state.Store(&tokenState{refreshToken: creds.RefreshToken})
	return m
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       int64  `json:"user_id"`
}

type tokenErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Token returns a bearer token valid for at least the safety margin,
// refreshing first when needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if err := m.expiredErr(); err != nil {
		return "", err
	}
	if s := m.state.Load(); m.valid(s) {
		return s.accessToken, nil
	}
	return m.do(ctx, false)
}

func (m *TokenManager) valid(s *tokenState) bool {
	if s.accessToken == "" || s.expiresAt.IsZero() {
		return false
	}
	return m.nowFunc().Before(s.expiresAt.Add(-safetyMargin))
}

// Refresh exchanges the current refresh token for a new token pair. It
// never returns the access token that was current when it was called.
// Callers arriving while a refresh is in flight wait for and share its
// result instead of spending the refresh token a second time.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	return m.do(ctx, true)
}

// expiredErr returns the latched refresh failure, or nil.
func (m *TokenManager) expiredErr() error {
	if e := m.expired.Load(); e != nil {
		return e
	}
	return nil
}

// do runs an exchange through one of two flights: lazy callers accept any
// valid token, forced callers need one other than the token they saw.
// Exchanges from both flights are serialized so the refresh token is spent
// at most once per rotation.
func (m *TokenManager) do(ctx context.Context, force bool) (string, error) {
	if err := m.expiredErr(); err != nil {
		return "", err
	}

	key, stale := "token", ""
	if force {
		key, stale = "refresh", m.state.Load().accessToken
	}

	ch := m.group.DoChan(key, func() (any, error) {
		m.exchangeMu.Lock()
		defer m.exchangeMu.Unlock()

		if err := m.expiredErr(); err != nil {
			return nil, err
		}
		// An exchange that finished while this one waited may already
		// have produced a usable token.
		if s := m.state.Load(); m.valid(s) && (!force || s.accessToken != stale) {
			return s.accessToken, nil
		}
		// Detached so one caller giving up does not fail everyone else.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenRequestTimeout)
		defer cancel()
		return m.refreshOnce(rctx)
	})

	select {
	case <-ctx.Done():
		return "", &AuthError{Op: "refreshing token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil //nolint:forcetypeassert // refreshOnce always returns string
	}
}

func (m *TokenManager) refreshOnce(ctx context.Context) (string, error) {
	m.loadPersisted(ctx)

	current := m.state.Load()

	resp, err := m.exchange(ctx, current.refreshToken)
	if err != nil {
		result := "error"
		var authErr *AuthError
		if errors.Is(err, ErrAuthExpired) && errors.As(err, &authErr) {
			result = "expired"
			m.expired.Store(authErr)
		}
		metrics.TokenRefreshesTotal.WithLabelValues(result).Inc()
		m.log.Error("token refresh failed", "error", err)
		return "", err
	}

	next := &tokenState{
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    m.nowFunc().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	// Some responses omit the refresh token; keep the one we have rather
	// than storing an empty value.
	if next.refreshToken == "" {
		next.refreshToken = current.refreshToken
	}
	m.state.Store(next)
	m.refresh.Add(1)

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	metrics.TokenExpiry.Set(float64(next.expiresAt.Unix()))
	m.log.Info("token refreshed",
		"token", logger.Preview(next.accessToken),
		"expires_at", next.expiresAt.Format(time.RFC3339),
	)

	if m.store != nil {
		if err := m.store.SaveTokens(ctx, next.refreshToken, next.expiresAt); err != nil {
			m.log.Warn("persisting refresh token failed", "error", err)
		}
	}

	return next.accessToken, nil
}

// loadPersisted replaces the configured refresh token with the last
// persisted one, once per process.
func (m *TokenManager) loadPersisted(ctx context.Context) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if m.loaded || m.store == nil {
		return
	}
	m.loaded = true

	rt, err := m.store.LoadRefreshToken(ctx)
	if err != nil {
		m.log.Warn("loading persisted refresh token failed", "error", err)
		return
	}
	if rt == "" {
		return
	}

	cur := m.state.Load()
	m.state.Store(&tokenState{
		accessToken:  cur.accessToken,
		refreshToken: rt,
		expiresAt:    cur.expiresAt,
	})
	m.log.Debug("using persisted refresh token")
}

func (m *TokenManager) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, &AuthError{Op: "creating token request", Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &AuthError{Op: "executing token request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Op: "reading token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp) //nolint:errcheck // best-effort error parsing

		if resp.StatusCode == http.StatusBadRequest && errResp.Error == "invalid_grant" {
			return nil, &AuthError{Op: "refreshing token", Expired: true, Err: ErrAuthExpired}
		}
		return nil, &AuthError{
			Op: "refreshing token",
			Err: fmt.Errorf(
				"token request failed (status %d): %s - %s",
				resp.StatusCode,
				errResp.Error,
				errResp.Message,
			),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &AuthError{Op: "parsing token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return nil, &AuthError{Op: "parsing token response", Err: errors.New("empty access_token")}
	}

	return &tokenResp, nil
}

// TokenInfo is a read-only view of the token state for status reporting.
type TokenInfo struct {
	HasAccessToken bool       `json:"has_access_token"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Expired        bool       `json:"expired"`
	AuthExpired    bool       `json:"auth_expired"`
	TokenPreview   string     `json:"token_preview,omitempty"`
	Refreshes      int64      `json:"refreshes"`
}

// Info returns a snapshot of the current token state.
func (m *TokenManager) Info() TokenInfo {
	s := m.state.Load()
	info := TokenInfo{
		HasAccessToken: s.accessToken != "",
		Expired:        !m.valid(s),
		AuthExpired:    m.expired.Load() != nil,
		TokenPreview:   logger.Preview(s.accessToken),
		Refreshes:      m.refresh.Load(),
	}
	if !s.expiresAt.IsZero() {
		exp := s.expiresAt
		info.ExpiresAt = &exp
	}
	return info
}

// AuthStatus is the result of an identity check.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        int64  `json:"user_id,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Email         string `json:"email,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Identity is the subset of /users/me the status check consumes.
type Identity struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// CheckStatus performs a "who am I" call through the authenticated path,
// so a rejected token is refreshed and retried once like any other call.
// It never returns an error; failures are reported in the status.
func (c *Client) CheckStatus(ctx context.Context) AuthStatus {
	var me Identity
	if err := c.GetJSON(ctx, "/users/me", nil, &me); err != nil {
		return AuthStatus{Authenticated: false, Error: err.Error()}
	}
	return AuthStatus{
		Authenticated: true,
		UserID:        me.ID,
		Nickname:      me.Nickname,
		Email:         me.Email,
	}
}
