package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/meli/melitest"
	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status domain.OutcomeStatus
		want   int
	}{
		{domain.OutcomeSuccess, ExitSuccess},
		{domain.OutcomePartial, ExitPartial},
		{domain.OutcomeFailed, ExitFailed},
		{"", ExitFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, exitCode(&domain.RunReport{Status: tt.status}))
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	bare := &ExitError{Code: ExitPartial}
	assert.Equal(t, "exit status 2", bare.Error())

	cause := errors.New("boom")
	wrapped := &ExitError{Code: ExitFailed, Err: cause}
	assert.Equal(t, "boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		outputDir = ""
		cfgFile = "config.yaml"
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestExtract_EndToEnd(t *testing.T) {
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
logging:
  level: error
`, catalog.SellerID, srv.URL))
	outDir := t.TempDir()

	out, err := runRoot(t, "extract", "--config", cfgPath, "--output-dir", outDir)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitPartial, exitErr.Code)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.OutcomePartial, report.Status)
	assert.Equal(t, 5, report.Requested)
	assert.Equal(t, 4, report.Resolved)
	assert.Equal(t, []string{"MLA1100000005"}, report.Skipped)

	result, err := sink.NewFileSink(outDir).Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Products, 4)
	assert.Equal(t, 4, result.Summary.TotalCount)
	assert.FileExists(t, filepath.Join(outDir, sink.CSVFileName))

	byID := make(map[string]domain.ProductRecord, len(result.Products))
	for _, p := range result.Products {
		byID[p.ID] = p
	}
	assert.Equal(t, domain.AccessPublic, byID["MLA1100000003"].AccessMethod)
	assert.Empty(t, byID["MLA1100000003"].ImageURL)
	assert.Equal(t, domain.AccessAuthenticated, byID["MLA1100000001"].AccessMethod)
}

func TestExtract_MissingCredentials(t *testing.T) {
	for _, k := range []string{
		"MERCADOLIBRE_CLIENT_ID",
		"MERCADOLIBRE_CLIENT_SECRET",
		"MERCADOLIBRE_REFRESH_TOKEN",
		"MERCADOLIBRE_USER_ID",
	} {
		t.Setenv(k, "")
	}
	cfgPath := writeConfig(t, "logging:\n  level: error\n")

	_, err := runRoot(t, "extract", "--config", cfgPath)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitFailed, exitErr.Code)
	assert.Contains(t, err.Error(), "reason config")
	assert.Contains(t, err.Error(), "MERCADOLIBRE_CLIENT_ID")
}

func TestVersion(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "meli-harvester dev\n", out)
}
