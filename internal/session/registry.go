package session

import (
	"context"
	"sync"
	"time"

	"schedbot/pkg/logx"
)

const (
	defaultTTL   = 15 * time.Minute
	defaultSweep = 1 * time.Minute
)

// Registry holds at most one live session per user. Sessions expire after
// TTL of inactivity; expiry is enforced lazily on Get and by a periodic
// sweep, so abandoned wizards always release their memory.
type Registry struct {
	mu sync.RWMutex

	ttl   time.Duration
	sweep time.Duration
	log   logx.Logger

	now func() time.Time

	m map[int64]*Session
}

func NewRegistry(ttl, sweep time.Duration, log logx.Logger) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if sweep <= 0 {
		sweep = defaultSweep
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		ttl:   ttl,
		sweep: sweep,
		log:   log,
		now:   time.Now,
		m:     map[int64]*Session{},
	}
}

// Start creates a fresh session for the user, unconditionally overwriting
// any existing one. A single session per user is assumed.
func (r *Registry) Start(userID int64) *Session {
	now := r.now()
	s := &Session{
		UserID:    userID,
		Step:      StepTarget,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.m[userID] = s
	r.mu.Unlock()
	return s
}

// StartEdit creates an edit-form session for an existing schedule,
// overwriting any in-flight wizard.
func (r *Registry) StartEdit(userID, scheduleID int64) *Session {
	now := r.now()
	s := &Session{
		UserID:    userID,
		Step:      StepEditForm,
		EditID:    scheduleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.m[userID] = s
	r.mu.Unlock()
	return s
}

// Get returns the user's live session, refreshing its activity timestamp.
// Expired sessions are dropped and reported as absent.
func (r *Registry) Get(userID int64) (*Session, bool) {
	now := r.now()

	r.mu.RLock()
	s, ok := r.m[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Sub(s.UpdatedAt) > r.ttl {
		r.mu.Lock()
		if cur, still := r.m[userID]; still && cur == s {
			delete(r.m, userID)
		}
		r.mu.Unlock()
		return nil, false
	}

	r.mu.Lock()
	s.UpdatedAt = now
	r.mu.Unlock()
	return s, true
}

// Remove drops the user's session (completion or cancellation) and reports
// whether one existed.
func (r *Registry) Remove(userID int64) bool {
	r.mu.Lock()
	_, ok := r.m[userID]
	delete(r.m, userID)
	r.mu.Unlock()
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Run sweeps expired sessions until ctx is canceled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.expire(); n > 0 {
				r.log.Debug("expired idle sessions", logx.Int("count", n))
			}
		}
	}
}

func (r *Registry) expire() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.m {
		if now.Sub(s.UpdatedAt) > r.ttl {
			delete(r.m, id)
			n++
		}
	}
	return n
}
