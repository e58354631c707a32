package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/meli-harvester/internal/harvest"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const defaultRunsLimit = 20

// Extractor runs the extraction pipeline.
type Extractor interface {
	Run(ctx context.Context) (*domain.RunReport, error)
	Running() bool
	LastReport() *domain.RunReport
}

// RunLister returns recorded run reports, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error)
}

// ExtractHandler triggers pipeline runs and reports their outcome.
type ExtractHandler struct {
	base      context.Context //nolint:containedctx // background runs outlive the request
	extractor Extractor
	runs      RunLister
	log       *slog.Logger
}

// NewExtractHandler creates a new ExtractHandler. Background runs use base,
// so cancelling it stops them on shutdown. runs may be nil.
func NewExtractHandler(
	base context.Context,
	ext Extractor,
	runs RunLister,
	log *slog.Logger,
) *ExtractHandler {
	return &ExtractHandler{base: base, extractor: ext, runs: runs, log: log}
}

// ExtractInput selects synchronous or background execution.
type ExtractInput struct {
	Wait bool `query:"wait" doc:"Block until the run finishes and return its report"`
}

// ExtractOutput is the response for a triggered run.
type ExtractOutput struct {
	Status int
	Body   struct {
		Status string            `json:"status"           example:"started" doc:"started, or the run outcome when wait=true"`
		Report *domain.RunReport `json:"report,omitempty"`
	}
}

// LastRunOutput is the response for the last run endpoint.
type LastRunOutput struct {
	Body domain.RunReport
}

// ListRunsInput is the input for listing recorded runs.
type ListRunsInput struct {
	Limit int `query:"limit" doc:"Number of runs (default 20)" minimum:"0" maximum:"200"`
}

// ListRunsOutput is the response for listing recorded runs.
type ListRunsOutput struct {
	Body struct {
		Runs []domain.RunReport `json:"runs"`
	}
}

// Extract starts a pipeline run. Without wait the run continues in the
// background and the endpoint answers 202.
func (h *ExtractHandler) Extract(ctx context.Context, input *ExtractInput) (*ExtractOutput, error) {
	if h.extractor.Running() {
		return nil, huma.Error409Conflict(harvest.ErrRunInProgress.Error())
	}

	resp := &ExtractOutput{}

	if !input.Wait {
		go func() {
			report, err := h.extractor.Run(h.base)
			switch {
			case errors.Is(err, harvest.ErrRunInProgress):
				h.log.Warn("background extraction not started", "error", err)
			case report != nil:
				h.log.Info("background extraction finished",
					"run_id", report.RunID,
					"status", report.Status,
				)
			}
		}()
		resp.Status = http.StatusAccepted
		resp.Body.Status = "started"
		return resp, nil
	}

	report, err := h.extractor.Run(ctx)
	if errors.Is(err, harvest.ErrRunInProgress) {
		return nil, huma.Error409Conflict(err.Error())
	}
	if report == nil {
		return nil, huma.Error500InternalServerError("extraction failed", err)
	}

	resp.Status = http.StatusOK
	resp.Body.Status = string(report.Status)
	resp.Body.Report = report
	return resp, nil
}

// LastRun returns the report of the most recent run in this process.
func (h *ExtractHandler) LastRun(_ context.Context, _ *struct{}) (*LastRunOutput, error) {
	report := h.extractor.LastReport()
	if report == nil {
		return nil, huma.Error404NotFound("no extraction has run yet")
	}
	return &LastRunOutput{Body: *report}, nil
}

// ListRuns returns persisted run reports. Without a run store it falls back
// to the in-memory last report.
func (h *ExtractHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultRunsLimit
	}

	resp := &ListRunsOutput{}
	resp.Body.Runs = []domain.RunReport{}

	if h.runs == nil {
		if last := h.extractor.LastReport(); last != nil {
			resp.Body.Runs = append(resp.Body.Runs, *last)
		}
		return resp, nil
	}

	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing runs failed", err)
	}
	resp.Body.Runs = append(resp.Body.Runs, runs...)
	return resp, nil
}

// RegisterExtractRoutes registers extraction endpoints with the Huma API.
func RegisterExtractRoutes(api huma.API, h *ExtractHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "trigger-extract",
		Method:        http.MethodPost,
		Path:          "/api/v1/extract",
		Summary:       "Trigger extraction",
		Description:   "Collects every listing id for the account, resolves each item, and saves the result.",
		Tags:          []string{"extract"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Extract)

	huma.Register(api, huma.Operation{
		OperationID: "get-last-run",
		Method:      http.MethodGet,
		Path:        "/api/v1/extract/last",
		Summary:     "Get last run report",
		Tags:        []string{"extract"},
		Errors:      []int{http.StatusNotFound},
	}, h.LastRun)

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List run reports",
		Tags:        []string{"extract"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListRuns)
}
