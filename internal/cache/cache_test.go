package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/cache"
	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/internal/sink"
)

// compile-time interface checks.
var (
	_ sink.ResultSink = (*cache.SnapshotCache)(nil)
	_ sink.Reader     = (*cache.SnapshotCache)(nil)
	_ meli.TokenStore = (*cache.TokenStore)(nil)
)

func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cache.New(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.New")
}
