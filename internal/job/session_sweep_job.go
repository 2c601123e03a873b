package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/store"
)

// SessionSweepJob reclaims sessions idle past their TTL. Expiry is
// best-effort: a session can stay in memory up to one sweep interval past
// its deadline, but lookups already refuse it by then.
type SessionSweepJob struct {
	store *store.Store
}

func NewSessionSweepJob(st *store.Store) *SessionSweepJob {
	return &SessionSweepJob{store: st}
}

func (j *SessionSweepJob) Name() string {
	return "session_sweep"
}

func (j *SessionSweepJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	reclaimed := j.store.Sweep(ctx)
	if reclaimed > 0 {
		logutil.GetLogger(ctx).Info("idle sessions reclaimed",
			zap.Int("count", reclaimed),
			zap.Int("remaining", j.store.Len()),
		)
	}
	return nil
}
