package notify

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded messages. It is used
// when Discord is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log line.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendRunReport logs and discards a run report.
func (n *NoOpNotifier) SendRunReport(_ context.Context, report *domain.RunReport) error {
	n.log.Debug("run report discarded (no backend configured)",
		"run_id", report.RunID,
		"status", report.Status,
		"resolved", report.Resolved,
		"requested", report.Requested,
	)
	return nil
}

// SendAuthExpired logs the alert at error level, since it needs a human.
func (n *NoOpNotifier) SendAuthExpired(_ context.Context, accountID string, cause error) error {
	n.log.Error("authorization expired, re-authorization required",
		"account_id", accountID,
		"error", cause,
	)
	return nil
}
