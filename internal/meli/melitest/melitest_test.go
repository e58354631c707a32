package melitest_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/internal/meli/melitest"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

func price(v float64) *float64 { return &v }

func catalog() melitest.Catalog {
	return melitest.Catalog{
		SellerID: "987654",
		Nickname: "MOCK_SELLER",
		Listings: []melitest.Listing{
			{
				Item:        meli.Item{ID: "MLA1", Title: "Yerba", Price: price(100), CurrencyID: "ARS"},
				Description: &meli.Description{PlainText: "Yerba mate 1kg"},
			},
			{Item: meli.Item{ID: "MLA2", Title: "Mate", Price: price(200)}, Access: melitest.AccessPublicOnly},
			{Item: meli.Item{ID: "MLA3", Title: "Bombilla"}, Access: melitest.AccessGone},
		},
	}
}

func newServer(t *testing.T, opts ...melitest.Option) (*melitest.Marketplace, *httptest.Server) {
	t.Helper()
	m := melitest.NewMarketplace(catalog(), opts...)
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return m, srv
}

func creds() domain.Credentials {
	return domain.Credentials{
		ClientID:     "app",
		ClientSecret: "secret",
		RefreshToken: "TG-seed",
		AccountID:    "987654",
	}
}

func TestMarketplace_HarvesterRoundTrip(t *testing.T) {
	t.Parallel()

	m, srv := newServer(t, melitest.WithCredentials("app", "secret", "TG-seed"))

	tokens := meli.NewTokenManager(creds(), meli.WithAPIBase(srv.URL))
	client := meli.NewClient(tokens, meli.WithBaseURL(srv.URL))

	collected, err := meli.NewIDCollector(client,
		meli.WithPageSize(2),
		meli.WithCollectorPacing(meli.Pacing{}),
	).CollectIDs(context.Background(), "987654")
	require.NoError(t, err)
	assert.Equal(t, []string{"MLA1", "MLA2", "MLA3"}, collected.IDs)
	assert.Equal(t, 2, m.Calls("search"))

	fetcher := meli.NewItemFetcher(client)

	rec, err := fetcher.Resolve(context.Background(), "MLA1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.AccessAuthenticated, rec.AccessMethod)
	assert.Equal(t, "Yerba mate 1kg", rec.Description)

	rec, err = fetcher.Resolve(context.Background(), "MLA2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.AccessPublic, rec.AccessMethod)

	rec, err = fetcher.Resolve(context.Background(), "MLA3")
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.NotEqual(t, "TG-seed", m.RefreshToken(), "refresh token rotates")

	status := client.CheckStatus(context.Background())
	assert.True(t, status.Authenticated)
	assert.Equal(t, int64(987654), status.UserID)
	assert.Equal(t, "MOCK_SELLER", status.Nickname)
}

func TestMarketplace_TokenEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name: "valid refresh",
			form: url.Values{
				"grant_type": {"refresh_token"}, "client_id": {"app"},
				"client_secret": {"secret"}, "refresh_token": {"TG-seed"},
			},
			wantStatus: http.StatusOK,
			wantBody:   `"access_token":"APP_USR-mock-1"`,
		},
		{
			name: "stale refresh token",
			form: url.Values{
				"grant_type": {"refresh_token"}, "client_id": {"app"},
				"client_secret": {"secret"}, "refresh_token": {"TG-old"},
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"error":"invalid_grant"`,
		},
		{
			name: "wrong client secret",
			form: url.Values{
				"grant_type": {"refresh_token"}, "client_id": {"app"},
				"client_secret": {"nope"}, "refresh_token": {"TG-seed"},
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `"error":"invalid_client"`,
		},
		{
			name:       "unsupported grant",
			form:       url.Values{"grant_type": {"authorization_code"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unsupported_grant_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, srv := newServer(t, melitest.WithCredentials("app", "secret", "TG-seed"))

			resp, err := http.Post(srv.URL+"/oauth/token",
				"application/x-www-form-urlencoded",
				strings.NewReader(tt.form.Encode()))
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestMarketplace_AccessModes(t *testing.T) {
	t.Parallel()

	cat := catalog()
	cat.Listings = append(cat.Listings, melitest.Listing{
		Item:   meli.Item{ID: "MLA4"},
		Access: melitest.AccessBroken,
	})
	srv := httptest.NewServer(melitest.NewMarketplace(cat).Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{name: "open item public path", path: "/items/MLA1", wantStatus: http.StatusOK},
		{name: "public-only item public path", path: "/items/MLA2", wantStatus: http.StatusOK},
		{name: "public-only item rejects unknown token", path: "/items/MLA2", token: "bogus", wantStatus: http.StatusUnauthorized},
		{name: "gone item", path: "/items/MLA3", wantStatus: http.StatusNotFound},
		{name: "broken item", path: "/items/MLA4", wantStatus: http.StatusInternalServerError},
		{name: "unknown item", path: "/items/MLA999", wantStatus: http.StatusNotFound},
		{name: "missing description", path: "/items/MLA2/description", wantStatus: http.StatusNotFound},
		{name: "search requires token", path: "/users/987654/items/search", wantStatus: http.StatusUnauthorized},
		{name: "identity requires token", path: "/users/me", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+tt.path, http.NoBody)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestMarketplace_UnknownSellerEndsWalk(t *testing.T) {
	t.Parallel()

	_, srv := newServer(t)
	tokens := meli.NewTokenManager(creds(), meli.WithAPIBase(srv.URL))
	client := meli.NewClient(tokens, meli.WithBaseURL(srv.URL))

	collected, err := meli.NewIDCollector(client,
		meli.WithCollectorPacing(meli.Pacing{}),
		meli.WithCollectorLogger(slog.New(slog.DiscardHandler)),
	).CollectIDs(context.Background(), "111")
	require.NoError(t, err)
	assert.Empty(t, collected.IDs)
	assert.Equal(t, meli.StopNotFound, collected.StoppedAt)
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	c, err := melitest.LoadCatalog("testdata/catalog.json")
	require.NoError(t, err)
	assert.NotEmpty(t, c.SellerID)
	assert.NotEmpty(t, c.Listings)

	_, err = melitest.LoadCatalog("testdata/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading catalog")
}
