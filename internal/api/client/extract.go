package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ExtractResponse is returned when a run is triggered.
type ExtractResponse struct {
	Status string            `json:"status"`
	Report *domain.RunReport `json:"report,omitempty"`
}

// Extract triggers an extraction run. With wait the call blocks until the
// run finishes and the report is returned.
func (c *Client) Extract(ctx context.Context, wait bool) (*ExtractResponse, error) {
	path := "/api/v1/extract"
	if wait {
		path += "?wait=true"
	}

	var out ExtractResponse
	if err := c.post(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastRun returns the most recent run report.
func (c *Client) LastRun(ctx context.Context) (*domain.RunReport, error) {
	var out domain.RunReport
	if err := c.get(ctx, "/api/v1/extract/last", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns recorded run reports, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	path := "/api/v1/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var out struct {
		Runs []domain.RunReport `json:"runs"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}
