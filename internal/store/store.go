// Package store defines the datastore abstraction for meli-harvester.
// The server wires the Store interface, never the Postgres implementation.
package store

import (
	"context"
	"errors"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ProductQuery defines optional filters over the latest product snapshot.
type ProductQuery struct {
	Status    *string
	Condition *string
	MinPrice  *float64
	MaxPrice  *float64
	Search    *string // case-insensitive title match
	Limit     int     // default 50
	Offset    int
	OrderBy   string // "position", "price", "title"
}

// Store defines all data access operations for meli-harvester.
type Store interface {
	// Results
	Save(ctx context.Context, result *domain.ExtractionResult) error
	Latest(ctx context.Context) (*domain.ExtractionResult, error)
	ListProducts(ctx context.Context, q *ProductQuery) ([]domain.ProductRecord, int, error)
	GetProduct(ctx context.Context, itemID string) (*domain.ProductRecord, error)

	// Runs
	RecordRun(ctx context.Context, r *domain.RunReport) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error)

	// Migrations
	Migrate(ctx context.Context) ([]string, error)

	// Health
	Ping(ctx context.Context) error
}
