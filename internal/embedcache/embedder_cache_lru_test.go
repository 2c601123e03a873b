package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "counting"
}

func TestLruEmbedder_SecondLookupHitsCache(t *testing.T) {
	next := &countingEmbedder{}
	embedder := WrapLruCacheToEmbedder(next, 16, time.Minute)

	first, err := embedder.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	second, err := embedder.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, next.calls)

	_, err = embedder.EmbedQuery(context.Background(), "world!")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestLruEmbedder_CachedVectorIsIsolated(t *testing.T) {
	embedder := WrapLruCacheToEmbedder(&countingEmbedder{}, 16, time.Minute)

	first, err := embedder.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	first[0] = -99
	second, err := embedder.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, float32(5), second[0])
}

func TestWrapLruCacheToEmbedder_DisabledPassesThrough(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
	require.Same(t, next, WrapLruCacheToEmbedder(next, 16, 0))
}
