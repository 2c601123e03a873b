package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/evstore/internal/model"
	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *time.Time) {
	t.Helper()
	if cfg.Dimension == 0 {
		cfg.Dimension = 2
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Minute
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(cfg)
	s.now = func() time.Time { return now }
	return s, &now
}

func textChunks(n int) []model.IncomingChunk {
	out := make([]model.IncomingChunk, n)
	for i := range out {
		out[i] = model.IncomingChunk{
			Text:     fmt.Sprintf("chunk %d", i),
			Metadata: model.ChunkMetadata{Source: "doc.pdf", Kind: model.KindText},
		}
	}
	return out
}

func TestStoreCreateOrGet_GeneratesIDWhenEmpty(t *testing.T) {
	s, _ := newTestStore(t, Config{})

	id, err := s.CreateOrGet("")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := s.CreateOrGet(id)
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, 1, s.Len())
}

func TestStoreAppendChunks_UnknownSession(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	_, err := s.AppendChunks("nope", textChunks(1), [][]float32{{1, 0}})
	require.ErrorIs(t, err, appErr.ErrSessionNotFound)
}

func TestStoreAppendChunks_AssignsStableIndexes(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	count, err := s.AppendChunks(id, textChunks(2), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = s.AppendChunks(id, textChunks(1), [][]float32{{1, 1}})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	snap, err := s.Snapshot(id)
	require.NoError(t, err)
	for i, c := range snap.Chunks {
		require.Equal(t, i, c.Index)
	}
	require.Len(t, snap.Vectors, 3)
}

func TestStoreAppendChunks_BadVectorLeavesNothingBehind(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	_, err = s.AppendChunks(id, textChunks(2), [][]float32{{1, 0}, {0, 0}})
	require.Error(t, err)

	snap, err := s.Snapshot(id)
	require.NoError(t, err)
	require.Empty(t, snap.Chunks)
	require.Empty(t, snap.Vectors)
}

func TestStoreAppendChunks_SessionChunkCeiling(t *testing.T) {
	s, _ := newTestStore(t, Config{MaxChunksPerSession: 2})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	_, err = s.AppendChunks(id, textChunks(2), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	_, err = s.AppendChunks(id, textChunks(1), [][]float32{{1, 1}})
	require.ErrorIs(t, err, appErr.ErrSessionFull)
}

func TestStoreQuery_RanksAndFiltersByKind(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	chunks := []model.IncomingChunk{
		{Text: "a", Metadata: model.ChunkMetadata{Source: "d", Kind: model.KindText}},
		{Text: "b", Metadata: model.ChunkMetadata{Source: "d", Kind: model.KindTable}},
	}
	_, err = s.AppendChunks(id, chunks, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	res, err := s.Query(id, []float32{0.9, 0.1}, 1, "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "a", res[0].Text)

	res, err = s.Query(id, []float32{0.9, 0.1}, 2, model.KindTable)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "b", res[0].Text)
}

func TestStoreExpiry_AccessAfterTTLReportsExpired(t *testing.T) {
	s, now := newTestStore(t, Config{TTL: time.Minute})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)
	_, err = s.AppendChunks(id, textChunks(1), [][]float32{{1, 0}})
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	_, err = s.Snapshot(id)
	require.ErrorIs(t, err, appErr.ErrSessionExpired)
	_, err = s.Query(id, []float32{1, 0}, 1, "")
	require.ErrorIs(t, err, appErr.ErrSessionExpired)
	_, err = s.AppendChunks(id, textChunks(1), [][]float32{{1, 0}})
	require.ErrorIs(t, err, appErr.ErrSessionExpired)
}

func TestStoreSweep_ReclaimsIdleSessions(t *testing.T) {
	s, now := newTestStore(t, Config{TTL: time.Minute})
	_, err := s.CreateOrGet("old")
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	_, err = s.CreateOrGet("fresh")
	require.NoError(t, err)

	*now = now.Add(45 * time.Second)
	require.Equal(t, 1, s.Sweep(context.Background()))
	require.Equal(t, 1, s.Len())

	_, err = s.Info("old")
	require.ErrorIs(t, err, appErr.ErrSessionNotFound)
	_, err = s.Info("fresh")
	require.NoError(t, err)
}

func TestStoreDelete_Idempotent(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	s.Delete(id)
	s.Delete(id)
	s.Delete("never-existed")
	_, err = s.Info(id)
	require.ErrorIs(t, err, appErr.ErrSessionNotFound)
}

func TestStoreSnapshot_SurvivesDelete(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)
	_, err = s.AppendChunks(id, textChunks(2), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	snap, err := s.Snapshot(id)
	require.NoError(t, err)
	s.Delete(id)

	require.Len(t, snap.Chunks, 2)
	require.Len(t, snap.Vectors, 2)
	_, err = s.Snapshot(id)
	require.ErrorIs(t, err, appErr.ErrSessionNotFound)
}

func TestStoreInfo_ReportsDeadline(t *testing.T) {
	s, now := newTestStore(t, Config{TTL: time.Minute})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	info, err := s.Info(id)
	require.NoError(t, err)
	require.Equal(t, 0, info.ChunkCount)
	require.Equal(t, *now, info.CreatedAt)
	require.Equal(t, now.Add(time.Minute), info.ExpiresAt)
}

func TestStoreConcurrentAppends_SameSessionLosesNothing(t *testing.T) {
	s := New(Config{Dimension: 2, TTL: time.Minute})
	id, err := s.CreateOrGet("s1")
	require.NoError(t, err)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.AppendChunks(id, textChunks(1), [][]float32{{1, float32(i)}})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	snap, err := s.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, snap.Chunks, writers*perWriter)
	for i, c := range snap.Chunks {
		require.Equal(t, i, c.Index)
	}
}

func TestStoreConcurrentAppends_DistinctSessionsDoNotInterfere(t *testing.T) {
	s := New(Config{Dimension: 2, TTL: time.Minute})

	const sessions = 6
	var wg sync.WaitGroup
	for n := 0; n < sessions; n++ {
		id, err := s.CreateOrGet(fmt.Sprintf("s%d", n))
		require.NoError(t, err)
		wg.Add(1)
		go func(id string, n int) {
			defer wg.Done()
			for i := 0; i < n+1; i++ {
				_, err := s.AppendChunks(id, textChunks(1), [][]float32{{1, 0}})
				require.NoError(t, err)
			}
		}(id, n)
	}
	wg.Wait()

	for n := 0; n < sessions; n++ {
		info, err := s.Info(fmt.Sprintf("s%d", n))
		require.NoError(t, err)
		require.Equal(t, n+1, info.ChunkCount)
	}
}
