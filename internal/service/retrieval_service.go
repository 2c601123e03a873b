package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/ai"
	"github.com/xxxsen/evstore/internal/model"
	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
	"github.com/xxxsen/evstore/internal/store"
)

type RetrieveRequest struct {
	SessionID string
	QueryText string
	K         int
	Kind      string // optional content-kind filter
}

type RetrieveResult struct {
	Results          []model.ScoredChunk
	TookMilliseconds int64
}

type RetrievalService struct {
	store    *store.Store
	embedder ai.IQueryEmbedder
	maxK     int
}

func NewRetrievalService(st *store.Store, embedder ai.IQueryEmbedder, maxK int) *RetrievalService {
	return &RetrievalService{store: st, embedder: embedder, maxK: maxK}
}

// Retrieve embeds the query and returns the session's top-k chunks by
// cosine similarity. k outside [1, maxK] is rejected as invalid input
// rather than clamped; this is the documented contract.
func (s *RetrievalService) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	start := time.Now()
	if req.QueryText == "" {
		return nil, fmt.Errorf("empty query text: %w", appErr.ErrInvalid)
	}
	if req.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", req.K, appErr.ErrInvalid)
	}
	if s.maxK > 0 && req.K > s.maxK {
		return nil, fmt.Errorf("k %d exceeds limit %d: %w", req.K, s.maxK, appErr.ErrInvalid)
	}
	var kind model.ContentKind
	if req.Kind != "" {
		parsed, err := model.ParseContentKind(req.Kind)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, appErr.ErrInvalid)
		}
		kind = parsed
	}
	// fail fast before paying for the embedding call
	if _, err := s.store.Info(req.SessionID); err != nil {
		return nil, err
	}

	logger := logutil.GetLogger(ctx).With(zap.String("session_id", req.SessionID))
	vec, err := s.embedder.EmbedQuery(ctx, req.QueryText)
	if err != nil {
		if errors.Is(err, appErr.ErrDimensionMismatch) {
			logger.Error("query embedding dimension mismatch", zap.Error(err))
			return nil, err
		}
		logger.Error("query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingUnavailable, err)
	}
	if len(vec) != s.store.Dimension() {
		logger.Error("embedding model produced wrong dimension",
			zap.Int("got", len(vec)),
			zap.Int("want", s.store.Dimension()),
		)
		return nil, fmt.Errorf("query vector has dimension %d, store expects %d: %w",
			len(vec), s.store.Dimension(), appErr.ErrDimensionMismatch)
	}

	results, err := s.store.Query(req.SessionID, vec, req.K, kind)
	if err != nil {
		return nil, err
	}
	took := time.Since(start).Milliseconds()
	logger.Debug("retrieval served",
		zap.Int("k", req.K),
		zap.Int("results", len(results)),
		zap.Int64("took_ms", took),
	)
	return &RetrieveResult{Results: results, TookMilliseconds: took}, nil
}
