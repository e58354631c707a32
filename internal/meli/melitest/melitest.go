// Package melitest provides an in-memory fake of the MercadoLibre API for
// tests and local development. It implements the token, identity, seller
// listing, item and description endpoints the harvester reads.
package melitest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/donaldgifford/meli-harvester/internal/meli"
)

// Access controls how a listing answers the two read paths.
type Access string

// Access modes.
const (
	AccessOpen       Access = ""            // readable with or without a token
	AccessPublicOnly Access = "public_only" // 403 when a bearer token is sent
	AccessGone       Access = "gone"        // 404 on both paths
	AccessBroken     Access = "broken"      // 500 on both paths
)

// Listing is one item in the fake catalog.
type Listing struct {
	Item        meli.Item         `json:"item"`
	Description *meli.Description `json:"description,omitempty"`
	Access      Access            `json:"access,omitempty"`
}

// Catalog is the data served by a Marketplace.
type Catalog struct {
	SellerID string    `json:"seller_id"`
	Nickname string    `json:"nickname"`
	Listings []Listing `json:"listings"`
}

// LoadCatalog reads a JSON catalog fixture.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted caller
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	return c, nil
}

// Marketplace is a fake MercadoLibre API.
type Marketplace struct {
	catalog Catalog
	byID    map[string]*Listing

	clientID     string
	clientSecret string
	tokenTTL     int
	log          *slog.Logger

	mu           sync.Mutex
	refreshToken string
	seq          int
	accessTokens map[string]struct{}
	calls        map[string]int
}

// Option configures a Marketplace.
type Option func(*Marketplace)

// WithCredentials makes the token endpoint require these values. Without
// it any client id and secret are accepted.
func WithCredentials(clientID, clientSecret, refreshToken string) Option {
	return func(m *Marketplace) {
		m.clientID = clientID
		m.clientSecret = clientSecret
		m.refreshToken = refreshToken
	}
}

// WithTokenTTL sets expires_in for issued access tokens.
func WithTokenTTL(seconds int) Option {
	return func(m *Marketplace) {
		m.tokenTTL = seconds
	}
}

// WithLogger logs every request at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(m *Marketplace) {
		m.log = l
	}
}

// NewMarketplace creates a fake API serving catalog.
func NewMarketplace(catalog Catalog, opts ...Option) *Marketplace {
	m := &Marketplace{
		catalog:      catalog,
		byID:         make(map[string]*Listing, len(catalog.Listings)),
		tokenTTL:     21600,
		log:          slog.New(slog.DiscardHandler),
		accessTokens: make(map[string]struct{}),
		calls:        make(map[string]int),
	}
	for i := range catalog.Listings {
		l := &m.catalog.Listings[i]
		m.byID[l.Item.ID] = l
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Calls returns how often a route was hit. Routes are "token", "me",
// "search", "item" and "description".
func (m *Marketplace) Calls(route string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[route]
}

// RefreshToken returns the refresh token currently accepted.
func (m *Marketplace) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshToken
}

// Handler returns the HTTP handler for the fake API.
func (m *Marketplace) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", m.handleToken)
	mux.HandleFunc("GET /users/me", m.handleMe)
	mux.HandleFunc("GET /users/{id}/items/search", m.handleSearch)
	mux.HandleFunc("GET /items/{id}", m.handleItem)
	mux.HandleFunc("GET /items/{id}/description", m.handleDescription)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.log.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		mux.ServeHTTP(w, r)
	})
}

func (m *Marketplace) count(route string) {
	m.mu.Lock()
	m.calls[route]++
	m.mu.Unlock()
}

func (m *Marketplace) handleToken(w http.ResponseWriter, r *http.Request) {
	m.count("token")
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if r.PostForm.Get("grant_type") != "refresh_token" {
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", "only refresh_token is supported")
		return
	}
	if m.clientID != "" && (r.PostForm.Get("client_id") != m.clientID ||
		r.PostForm.Get("client_secret") != m.clientSecret) {
		writeError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	m.mu.Lock()
	if m.refreshToken != "" && r.PostForm.Get("refresh_token") != m.refreshToken {
		m.mu.Unlock()
		writeError(w, http.StatusBadRequest, "invalid_grant", "invalid refresh_token")
		return
	}
	m.seq++
	access := "APP_USR-mock-" + strconv.Itoa(m.seq)
	m.refreshToken = "TG-mock-" + strconv.Itoa(m.seq)
	m.accessTokens[access] = struct{}{}
	refresh, seq := m.refreshToken, m.seq
	m.mu.Unlock()

	userID, _ := strconv.ParseInt(m.catalog.SellerID, 10, 64)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    m.tokenTTL,
		"token_type":    "Bearer",
		"user_id":       userID,
	})
	m.log.Info("issued mock token", "seq", seq)
}

// bearer classifies the Authorization header: no token, a token this fake
// issued, or an unknown token.
func (m *Marketplace) bearer(r *http.Request) (present, valid bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return false, false
	}
	token := strings.TrimPrefix(h, "Bearer ")
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accessTokens[token]
	return true, ok
}

func (m *Marketplace) handleMe(w http.ResponseWriter, r *http.Request) {
	m.count("me")
	if _, valid := m.bearer(r); !valid {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}
	id, _ := strconv.ParseInt(m.catalog.SellerID, 10, 64)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"nickname": m.catalog.Nickname,
		"email":    "seller@example.com",
	})
}

func (m *Marketplace) handleSearch(w http.ResponseWriter, r *http.Request) {
	m.count("search")
	if _, valid := m.bearer(r); !valid {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return
	}
	if r.PathValue("id") != m.catalog.SellerID {
		writeError(w, http.StatusNotFound, "not_found", "seller not found")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	total := len(m.catalog.Listings)
	start := min(offset, total)
	end := min(start+limit, total)

	ids := make([]string, 0, end-start)
	for _, l := range m.catalog.Listings[start:end] {
		ids = append(ids, l.Item.ID)
	}

	writeJSON(w, http.StatusOK, meli.SearchResponse{
		SellerID: m.catalog.SellerID,
		Results:  ids,
		Paging:   meli.Paging{Limit: limit, Offset: offset, Total: total},
	})
}

// lookup applies the listing's access mode and writes the error response
// when the item cannot be read on this path.
func (m *Marketplace) lookup(w http.ResponseWriter, r *http.Request) (*Listing, bool) {
	present, valid := m.bearer(r)
	if present && !valid {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return nil, false
	}

	l, ok := m.byID[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "item not found")
		return nil, false
	}

	switch l.Access {
	case AccessGone:
		writeError(w, http.StatusNotFound, "not_found", "item not found")
		return nil, false
	case AccessBroken:
		writeError(w, http.StatusInternalServerError, "internal_error", "item unavailable")
		return nil, false
	case AccessPublicOnly:
		if present {
			writeError(w, http.StatusForbidden, "forbidden", "caller is not the item owner")
			return nil, false
		}
	}
	return l, true
}

func (m *Marketplace) handleItem(w http.ResponseWriter, r *http.Request) {
	m.count("item")
	if l, ok := m.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, l.Item)
	}
}

func (m *Marketplace) handleDescription(w http.ResponseWriter, r *http.Request) {
	m.count("description")
	l, ok := m.lookup(w, r)
	if !ok {
		return
	}
	if l.Description == nil {
		writeError(w, http.StatusNotFound, "not_found", "description not found")
		return
	}
	writeJSON(w, http.StatusOK, l.Description)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort write in fake server
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": msg,
		"status":  status,
	})
}
