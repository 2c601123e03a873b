package quota

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check. Used and ResetAt describe
// the window as it stands after the decision was applied.
type Decision struct {
	Allowed   bool
	Used      int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Tracker enforces a fixed-window write quota per user. Each user has its own
// counter and lock, so admission for different users never contends; the
// top-level map lock is only held for lookup and insert.
type Tracker struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	users     map[string]*record
	lastSweep time.Time
}

type record struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

func NewTracker(limit int, window time.Duration) *Tracker {
	return &Tracker{
		limit:  limit,
		window: window,
		now:    time.Now,
		users:  make(map[string]*record),
	}
}

func (t *Tracker) Limit() int {
	return t.limit
}

// Admit commits n writes for userID if the post-increment total stays within
// the window ceiling, all or nothing. A call landing after the window has
// elapsed starts a fresh window rather than topping up the exhausted one.
func (t *Tracker) Admit(userID string, n int) Decision {
	now := t.now()
	rec := t.record(userID, now)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !now.Before(rec.windowStart.Add(t.window)) {
		rec.count = 0
		rec.windowStart = now
	}
	resetAt := rec.windowStart.Add(t.window)
	if n > 0 && rec.count+n > t.limit {
		return Decision{
			Allowed:   false,
			Used:      rec.count,
			Limit:     t.limit,
			Remaining: t.limit - rec.count,
			ResetAt:   resetAt,
		}
	}
	if n > 0 {
		rec.count += n
	}
	return Decision{
		Allowed:   true,
		Used:      rec.count,
		Limit:     t.limit,
		Remaining: t.limit - rec.count,
		ResetAt:   resetAt,
	}
}

// Release hands back quota that was admitted but never used, e.g. when the
// embedding call behind an admitted ingestion fails. Quota from an already
// elapsed window is simply gone.
func (t *Tracker) Release(userID string, n int) {
	if n <= 0 {
		return
	}
	t.mu.RLock()
	rec := t.users[userID]
	t.mu.RUnlock()
	if rec == nil {
		return
	}
	now := t.now()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !now.Before(rec.windowStart.Add(t.window)) {
		return
	}
	rec.count -= n
	if rec.count < 0 {
		rec.count = 0
	}
}

func (t *Tracker) record(userID string, now time.Time) *record {
	t.mu.RLock()
	rec := t.users[userID]
	t.mu.RUnlock()
	if rec != nil {
		return rec
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepStaleLocked(now)
	if rec = t.users[userID]; rec != nil {
		return rec
	}
	rec = &record{windowStart: now}
	t.users[userID] = rec
	return rec
}

// sweepStaleLocked drops records whose window elapsed long ago so the map
// does not grow with every user ever seen. A user racing the sweep just gets
// a fresh window, which is the same outcome the reset would produce.
func (t *Tracker) sweepStaleLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.window {
		return
	}
	for id, rec := range t.users {
		rec.mu.Lock()
		stale := !now.Before(rec.windowStart.Add(2 * t.window))
		rec.mu.Unlock()
		if stale {
			delete(t.users, id)
		}
	}
	t.lastSweep = now
}
