package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"

	"github.com/xxxsen/evstore/internal/ai"
)

// WrapLruCacheToEmbedder memoizes query embeddings. Repeated queries within
// a session are common and the provider call dominates retrieval latency.
// Document embeddings are deliberately not cached: they are embedded once
// per ingestion and the vectors live in the session anyway.
func WrapLruCacheToEmbedder(e ai.IQueryEmbedder, size int, ttl time.Duration) ai.IQueryEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IQueryEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := buildCacheKey(l.next.ModelName(), text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("query embedding cache hit")
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func buildCacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
