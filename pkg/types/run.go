package domain

import "time"

// OutcomeStatus is the top-level result of an extraction run.
type OutcomeStatus string

// Outcome status constants.
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// FailureReason classifies why a run failed.
type FailureReason string

// Failure reason constants.
const (
	ReasonNone        FailureReason = ""
	ReasonConfig      FailureReason = "config"
	ReasonAuthExpired FailureReason = "auth_expired"
	ReasonAuth        FailureReason = "auth"
	ReasonNetwork     FailureReason = "network"
	ReasonSink        FailureReason = "sink"
	ReasonCanceled    FailureReason = "canceled"
)

// RunReport describes a finished (or failed) extraction run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Status     OutcomeStatus `json:"status"`
	Reason     FailureReason `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Requested  int           `json:"requested"`
	Resolved   int           `json:"resolved"`
	Skipped    []string      `json:"skipped,omitempty"`
	StoppedAt  string        `json:"stopped_at,omitempty"`

	Result *ExtractionResult `json:"-"`
}

// SkippedCount returns how many requested ids did not resolve.
func (r *RunReport) SkippedCount() int {
	return r.Requested - r.Resolved
}
