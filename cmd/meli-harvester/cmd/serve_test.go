package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/config"
	"github.com/donaldgifford/meli-harvester/internal/meli/melitest"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	catalog, err := melitest.LoadCatalog(filepath.Join("..", "..", "..",
		"internal", "meli", "melitest", "testdata", "catalog.json"))
	require.NoError(t, err)

	market := melitest.NewMarketplace(catalog, melitest.WithCredentials("app", "secret", "TG-seed"))
	srv := httptest.NewServer(market.Handler())
	t.Cleanup(srv.Close)

	cfgPath := writeConfig(t, fmt.Sprintf(`
meli:
  client_id: app
  client_secret: secret
  refresh_token: TG-seed
  account_id: "%s"
  api_base: %s
  page_delay: 1ms
  item_delay: 1ms
  rate_limit:
    per_second: 1000
    burst: 100
    daily_limit: 1000
harvest:
  output_dir: %s
`, catalog.SellerID, srv.URL, t.TempDir()))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := buildApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func serveJSON(t *testing.T, h http.Handler, method, target string, dst any) int {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if dst != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}
	return rec.Code
}

func TestNewServer_Routes(t *testing.T) {
	a := newTestApp(t)
	e := newServer(context.Background(), a)

	assert.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/openapi.json", nil))
	assert.Equal(t, http.StatusMovedPermanently, serveJSON(t, e, http.MethodGet, "/swagger", nil))

	// No run yet: products come from the pipeline, which has no result.
	assert.Equal(t, http.StatusNotFound, serveJSON(t, e, http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusNotFound, serveJSON(t, e, http.MethodGet, "/api/v1/extract/last", nil))

	var extract struct {
		Status string `json:"status"`
		Report struct {
			Status   string   `json:"status"`
			Resolved int      `json:"resolved"`
			Skipped  []string `json:"skipped"`
		} `json:"report"`
	}
	require.Equal(t, http.StatusOK,
		serveJSON(t, e, http.MethodPost, "/api/v1/extract?wait=true", &extract))
	assert.Equal(t, "partial", extract.Report.Status)
	assert.Equal(t, 4, extract.Report.Resolved)
	assert.Equal(t, []string{"MLA1100000005"}, extract.Report.Skipped)

	var products struct {
		Products []struct {
			ID       string `json:"id"`
			ImageURL string `json:"image_url"`
		} `json:"products"`
		Total int `json:"total"`
	}
	require.Equal(t, http.StatusOK,
		serveJSON(t, e, http.MethodGet, "/api/v1/products?order_by=title", &products))
	assert.Equal(t, 4, products.Total)
	for _, p := range products.Products {
		assert.NotEmpty(t, p.ImageURL, p.ID)
	}

	assert.Equal(t, http.StatusOK,
		serveJSON(t, e, http.MethodGet, "/api/v1/products/MLA1100000001", nil))
	assert.Equal(t, http.StatusNotFound,
		serveJSON(t, e, http.MethodGet, "/api/v1/products/MLA1100000005", nil))

	var quota struct {
		DailyLimit int64 `json:"daily_limit"`
		DailyUsed  int64 `json:"daily_used"`
	}
	require.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/api/v1/quota", &quota))
	assert.Equal(t, int64(1000), quota.DailyLimit)
	assert.Positive(t, quota.DailyUsed)

	var status struct {
		AccountID string `json:"account_id"`
		Identity  struct {
			Authenticated bool   `json:"authenticated"`
			Nickname      string `json:"nickname"`
		} `json:"identity"`
	}
	require.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/api/v1/auth/status", &status))
	assert.True(t, status.Identity.Authenticated)
	assert.Equal(t, "MOCK_SELLER", status.Identity.Nickname)

	var runs struct {
		Runs []json.RawMessage `json:"runs"`
	}
	require.Equal(t, http.StatusOK, serveJSON(t, e, http.MethodGet, "/api/v1/runs", &runs))
	assert.Len(t, runs.Runs, 1)
}

func TestApp_ProductListerFallsBackToPipeline(t *testing.T) {
	a := newTestApp(t)

	assert.Nil(t, a.store)
	require.NotNil(t, a.reader)
	assert.NotNil(t, a.productLister())
}
