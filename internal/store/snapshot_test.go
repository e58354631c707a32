package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/sink"
	"github.com/donaldgifford/meli-harvester/internal/store"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

type staticReader struct {
	result *domain.ExtractionResult
	err    error
}

func (r staticReader) Latest(context.Context) (*domain.ExtractionResult, error) {
	return r.result, r.err
}

func TestSnapshotLister(t *testing.T) {
	t.Parallel()

	reader := staticReader{result: &domain.ExtractionResult{Products: []domain.ProductRecord{
		{ID: "MLA1", Status: "active"},
		{ID: "MLA2", Status: "paused"},
	}}}
	l := store.NewSnapshotLister(reader)

	status := "paused"
	page, total, err := l.ListProducts(context.Background(), &store.ProductQuery{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "MLA2", page[0].ID)

	p, err := l.GetProduct(context.Background(), "MLA1")
	require.NoError(t, err)
	assert.Equal(t, "active", p.Status)

	_, err = l.GetProduct(context.Background(), "MLA9")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotLister_NoResult(t *testing.T) {
	t.Parallel()

	l := store.NewSnapshotLister(staticReader{err: sink.ErrNoResult})

	_, _, err := l.ListProducts(context.Background(), &store.ProductQuery{})
	assert.ErrorIs(t, err, sink.ErrNoResult)
}
