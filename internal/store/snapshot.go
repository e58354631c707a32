package store

import (
	"context"

	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// SnapshotLister answers product queries from whatever Reader holds the
// latest result. It serves deployments without Postgres.
type SnapshotLister struct {
	reader sink.Reader
}

// NewSnapshotLister wraps a Reader.
func NewSnapshotLister(r sink.Reader) *SnapshotLister {
	return &SnapshotLister{reader: r}
}

// ListProducts loads the latest result and filters it in memory.
func (l *SnapshotLister) ListProducts(
	ctx context.Context,
	q *ProductQuery,
) ([]domain.ProductRecord, int, error) {
	result, err := l.reader.Latest(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, total := q.Apply(result.Products)
	return page, total, nil
}

// GetProduct finds one product in the latest result.
func (l *SnapshotLister) GetProduct(ctx context.Context, itemID string) (*domain.ProductRecord, error) {
	result, err := l.reader.Latest(ctx)
	if err != nil {
		return nil, err
	}
	for i := range result.Products {
		if result.Products[i].ID == itemID {
			p := result.Products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}
