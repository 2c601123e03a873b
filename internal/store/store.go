package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/model"
	appErr "github.com/xxxsen/evstore/internal/pkg/errors"
	"github.com/xxxsen/evstore/internal/vectorindex"
)

type Config struct {
	Dimension           int
	TTL                 time.Duration
	MaxChunksPerSession int
}

// Store owns every live session. The top-level map is guarded by its own
// lock, held only for lookup, insert and remove; each session carries its
// own lock, so work on different sessions never serializes and nothing
// global is held across an embedding call or a similarity scan.
type Store struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id        string
	createdAt time.Time
	atime     atomic.Int64 // unix nano of last access

	mu     sync.RWMutex
	chunks []model.Chunk
	index  *vectorindex.Index
}

// Snapshot is a read view of a session taken at a single point in time.
// Chunks and Vectors are immutable and stay consistent even if the session
// is appended to, expired or deleted afterwards.
type Snapshot struct {
	SessionID string
	CreatedAt time.Time
	Chunks    []model.Chunk
	Vectors   [][]float32
}

func New(cfg Config) *Store {
	return &Store{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *Store) Dimension() int {
	return s.cfg.Dimension
}

func (s *Store) TTL() time.Duration {
	return s.cfg.TTL
}

// CreateOrGet resolves sessionID to a live session, creating one when the id
// is empty (server-generated) or unknown. A caller-supplied id of an expired
// session is rejected; ids are never reused across unrelated requests.
func (s *Store) CreateOrGet(sessionID string) (string, error) {
	now := s.now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	if sess != nil {
		if s.expired(sess, now) {
			return "", fmt.Errorf("session %s: %w", sessionID, appErr.ErrSessionExpired)
		}
		return sessionID, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[sessionID]; sess != nil {
		if s.expired(sess, now) {
			return "", fmt.Errorf("session %s: %w", sessionID, appErr.ErrSessionExpired)
		}
		return sessionID, nil
	}
	idx, err := vectorindex.New(s.cfg.Dimension)
	if err != nil {
		return "", err
	}
	sess = &session{id: sessionID, createdAt: now, index: idx}
	sess.atime.Store(now.UnixNano())
	s.sessions[sessionID] = sess
	return sessionID, nil
}

// AppendChunks appends a batch atomically: either every chunk and vector in
// the batch lands, or none does. Returns the session's new chunk count.
func (s *Store) AppendChunks(sessionID string, chunks []model.IncomingChunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("store: %d chunks but %d vectors: %w", len(chunks), len(vectors), appErr.ErrInternal)
	}
	now := s.now()
	sess, err := s.lookup(sessionID, now)
	if err != nil {
		return 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if s.cfg.MaxChunksPerSession > 0 && len(sess.chunks)+len(chunks) > s.cfg.MaxChunksPerSession {
		return 0, fmt.Errorf("session %s holds %d chunks, adding %d exceeds limit %d: %w",
			sessionID, len(sess.chunks), len(chunks), s.cfg.MaxChunksPerSession, appErr.ErrSessionFull)
	}
	if err := sess.index.Append(vectors); err != nil {
		return 0, err
	}
	base := len(sess.chunks)
	for i, in := range chunks {
		sess.chunks = append(sess.chunks, model.Chunk{
			Index:    base + i,
			Text:     in.Text,
			Metadata: in.Metadata,
		})
	}
	sess.atime.Store(now.UnixNano())
	return len(sess.chunks), nil
}

// Query ranks the session's chunks against vec and returns the top k, ties
// broken by lower chunk index. kind, when non-empty, restricts candidates to
// chunks of that content kind. The read holds the session lock shared, so it
// sees either the pre-append or post-append state of a concurrent ingestion,
// never a partial batch.
func (s *Store) Query(sessionID string, vec []float32, k int, kind model.ContentKind) ([]model.ScoredChunk, error) {
	now := s.now()
	sess, err := s.lookup(sessionID, now)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	var allow func(i int) bool
	if kind != "" {
		chunks := sess.chunks
		allow = func(i int) bool { return chunks[i].Metadata.Kind == kind }
	}
	hits, err := sess.index.Search(vec, k, allow)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		out = append(out, model.ScoredChunk{Chunk: sess.chunks[hit.Index], Score: hit.Score})
	}
	sess.atime.Store(now.UnixNano())
	return out, nil
}

// Snapshot returns a point-in-time read view and refreshes the session's
// last access. The view stays valid after the session expires or is deleted;
// callers may stream from it without holding any lock.
func (s *Store) Snapshot(sessionID string) (*Snapshot, error) {
	now := s.now()
	sess, err := s.lookup(sessionID, now)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	snap := &Snapshot{
		SessionID: sess.id,
		CreatedAt: sess.createdAt,
		Chunks:    sess.chunks[:len(sess.chunks):len(sess.chunks)],
		Vectors:   sess.index.Rows(),
	}
	sess.mu.RUnlock()
	sess.atime.Store(now.UnixNano())
	return snap, nil
}

// Info reports the session's inspection view without refreshing its last
// access, so polling a session does not keep it alive.
func (s *Store) Info(sessionID string) (*model.SessionInfo, error) {
	now := s.now()
	sess, err := s.lookup(sessionID, now)
	if err != nil {
		return nil, err
	}
	last := time.Unix(0, sess.atime.Load())
	sess.mu.RLock()
	count := len(sess.chunks)
	sess.mu.RUnlock()
	return &model.SessionInfo{
		SessionID:    sess.id,
		ChunkCount:   count,
		CreatedAt:    sess.createdAt,
		LastAccessAt: last,
		ExpiresAt:    last.Add(s.cfg.TTL),
	}, nil
}

// Delete removes the session immediately. Deleting an unknown or already
// expired session succeeds; in-flight snapshot reads complete on the state
// they captured.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Sweep removes every session idle past the TTL and returns how many were
// reclaimed. A session may outlive its nominal deadline by up to one sweep
// interval; lookups already treat it as expired in the meantime.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		logutil.GetLogger(ctx).Debug("session reclaimed", zap.String("session_id", id))
	}
	return len(expired)
}

// Len reports the number of tracked sessions, expired ones included until
// the next sweep.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) lookup(sessionID string, now time.Time) (*session, error) {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, appErr.ErrSessionNotFound)
	}
	if s.expired(sess, now) {
		return nil, fmt.Errorf("session %s: %w", sessionID, appErr.ErrSessionExpired)
	}
	return sess, nil
}

func (s *Store) expired(sess *session, now time.Time) bool {
	return now.Sub(time.Unix(0, sess.atime.Load())) > s.cfg.TTL
}
