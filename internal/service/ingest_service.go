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
	"github.com/xxxsen/evstore/internal/quota"
	"github.com/xxxsen/evstore/internal/store"
)

// IDocumentEmbedder is the slice of ai.Manager the ingestion path uses.
type IDocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type IngestLimits struct {
	MaxBatchSize  int
	MaxTextLength int
}

type IngestRequest struct {
	UserID    string
	SessionID string
	Chunks    []model.IncomingChunk
}

type IngestResult struct {
	SessionID      string
	ChunksStored   int
	ChunkCount     int
	QuotaRemaining int
}

// QuotaRejection reports a quota denial with enough detail for the caller
// to back off until the window resets.
type QuotaRejection struct {
	Used    int
	Limit   int
	ResetAt time.Time
}

func (e *QuotaRejection) Error() string {
	return fmt.Sprintf("quota exceeded: used %d of %d, window resets at %s", e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

func (e *QuotaRejection) Unwrap() error {
	return appErr.ErrQuotaExceeded
}

type IngestService struct {
	store    *store.Store
	quota    *quota.Tracker
	embedder IDocumentEmbedder
	limits   IngestLimits
}

func NewIngestService(st *store.Store, tracker *quota.Tracker, embedder IDocumentEmbedder, limits IngestLimits) *IngestService {
	return &IngestService{store: st, quota: tracker, embedder: embedder, limits: limits}
}

// Ingest admits, embeds and stores one chunk batch. The batch is atomic end
// to end: a quota rejection, embedding failure or store failure leaves no
// chunk behind and hands any reserved quota back.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", req.UserID),
		zap.Int("batch_size", len(req.Chunks)),
	)

	decision := s.quota.Admit(req.UserID, len(req.Chunks))
	if !decision.Allowed {
		logger.Warn("ingestion rejected by quota",
			zap.Int("used", decision.Used),
			zap.Int("limit", decision.Limit),
			zap.Time("reset_at", decision.ResetAt),
		)
		return nil, &QuotaRejection{Used: decision.Used, Limit: decision.Limit, ResetAt: decision.ResetAt}
	}

	texts := make([]string, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		s.quota.Release(req.UserID, len(req.Chunks))
		if errors.Is(err, appErr.ErrDimensionMismatch) {
			logger.Error("embedding dimension mismatch, check ai.dimension against the configured model", zap.Error(err))
			return nil, err
		}
		logger.Error("embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingUnavailable, err)
	}

	sessionID, err := s.store.CreateOrGet(req.SessionID)
	if err != nil {
		s.quota.Release(req.UserID, len(req.Chunks))
		return nil, err
	}
	count, err := s.store.AppendChunks(sessionID, req.Chunks, vectors)
	if err != nil {
		s.quota.Release(req.UserID, len(req.Chunks))
		return nil, err
	}
	logger.Info("chunks ingested",
		zap.String("session_id", sessionID),
		zap.Int("chunk_count", count),
	)
	return &IngestResult{
		SessionID:      sessionID,
		ChunksStored:   len(req.Chunks),
		ChunkCount:     count,
		QuotaRemaining: decision.Remaining,
	}, nil
}

func (s *IngestService) validate(req IngestRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("user id is required: %w", appErr.ErrInvalid)
	}
	if len(req.Chunks) == 0 {
		return fmt.Errorf("empty chunk batch: %w", appErr.ErrInvalid)
	}
	if s.limits.MaxBatchSize > 0 && len(req.Chunks) > s.limits.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d: %w", len(req.Chunks), s.limits.MaxBatchSize, appErr.ErrInvalid)
	}
	for i, c := range req.Chunks {
		if c.Text == "" {
			return fmt.Errorf("chunk %d has empty text: %w", i, appErr.ErrInvalid)
		}
		if s.limits.MaxTextLength > 0 && len(c.Text) > s.limits.MaxTextLength {
			return fmt.Errorf("chunk %d text exceeds %d bytes: %w", i, s.limits.MaxTextLength, appErr.ErrInvalid)
		}
		if !c.Metadata.Kind.Valid() {
			return fmt.Errorf("chunk %d: unknown content kind %q: %w", i, c.Metadata.Kind, appErr.ErrInvalid)
		}
	}
	return nil
}

var _ IDocumentEmbedder = (*ai.Manager)(nil)
