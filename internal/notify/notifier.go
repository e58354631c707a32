// Package notify defines the notification interface and implementations
// for run report and credential alert delivery.
package notify

import (
	"context"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// Notifier delivers operator-facing messages about extraction runs.
type Notifier interface {
	// SendRunReport announces a finished run.
	SendRunReport(ctx context.Context, report *domain.RunReport) error
	// SendAuthExpired warns that the refresh token was rejected and the
	// application must be re-authorized by hand.
	SendAuthExpired(ctx context.Context, accountID string, cause error) error
}
