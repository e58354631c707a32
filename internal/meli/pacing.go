package meli

import (
	"context"
	"time"
)

// Default pacing between provider calls.
const (
	DefaultPageDelay = 500 * time.Millisecond
	DefaultItemDelay = 800 * time.Millisecond
)

// Pacing is the cooperative delay policy between listing pages and between
// item resolutions. The zero value disables pacing.
type Pacing struct {
	PageDelay time.Duration
	ItemDelay time.Duration
}

// DefaultPacing returns the production pacing.
func DefaultPacing() Pacing {
	return Pacing{PageDelay: DefaultPageDelay, ItemDelay: DefaultItemDelay}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
