package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
)

type ManagerConfig struct {
	Model       string
	Dimension   int
	Timeout     time.Duration
	MaxParallel int
	BatchSize   int
	RateLimit   float64 // provider calls per second, 0 means unlimited
}

// Manager fronts an embedding provider with the policies the store relies
// on: a bounded timeout per provider call, client-side pacing, sub-batch
// fan-out for large ingestions, and a hard check that every returned vector
// matches the configured dimension.
type Manager struct {
	provider IEmbedProvider
	cfg      ManagerConfig
	limiter  *rate.Limiter
}

func NewManager(provider IEmbedProvider, cfg ManagerConfig) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Manager{provider: provider, cfg: cfg, limiter: limiter}
}

func (m *Manager) Dimension() int {
	return m.cfg.Dimension
}

func (m *Manager) ModelName() string {
	return m.cfg.Model
}

// EmbedQuery embeds a single query text.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.call(ctx, []string{text}, TaskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds every text in input order. Large batches are split
// into provider-sized calls that run with bounded parallelism; any failed
// call fails the whole batch.
func (m *Manager) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(m.cfg.MaxParallel)
	for start := 0; start < len(texts); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		grp.Go(func() error {
			vectors, err := m.call(grpCtx, texts[start:end], TaskDocument)
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) call(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	vectors, err := m.provider.EmbedBatch(callCtx, m.cfg.Model, texts, taskType)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrUnavailable, len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if len(vec) != m.cfg.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, model %s is configured for %d: %w",
				i, len(vec), m.cfg.Model, m.cfg.Dimension, appErr.ErrDimensionMismatch)
		}
	}
	return vectors, nil
}
