package chat

import (
	"context"
	"sync"
	"time"

	"github.com/lazycook/chat-platform/internal/plan"
)

// DefaultSessionIdle is how long an unused Manager stays in memory. Its chats
// are already mirrored, so an evicted user is rehydrated from the Store.
const DefaultSessionIdle = 30 * time.Minute

type sessionEntry struct {
	manager  *Manager
	lastSeen time.Time
}

// Sessions holds one Manager per signed-in user for the server process.
type Sessions struct {
	mu       sync.Mutex
	managers map[string]*sessionEntry
	idle     time.Duration
	now      func() time.Time
	lastGC   time.Time

	dispatcher Dispatcher
	store      Store
	opts       []Option
}

func NewSessions(d Dispatcher, store Store, opts ...Option) *Sessions {
	return &Sessions{
		managers:   make(map[string]*sessionEntry),
		idle:       DefaultSessionIdle,
		now:        time.Now,
		dispatcher: d,
		store:      store,
		opts:       opts,
	}
}

// SetIdle changes the eviction period; d <= 0 disables eviction.
func (s *Sessions) SetIdle(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = d
}

// Get returns the user's Manager, creating it on first use. Every call
// retries hydration until one succeeds. p is the plan currently on record;
// a changed plan is applied.
func (s *Sessions) Get(ctx context.Context, userID string, p plan.Plan) *Manager {
	s.mu.Lock()
	now := s.now()
	s.evictLocked(now)
	e, ok := s.managers[userID]
	if !ok {
		e = &sessionEntry{manager: NewManager(userID, p, s.dispatcher, s.store, s.opts...)}
		s.managers[userID] = e
	}
	e.lastSeen = now
	m := e.manager
	s.mu.Unlock()

	// load failures are logged inside and leave a local-only session
	_ = m.Load(ctx)

	if m.Plan() != p {
		m.SetPlan(p)
	}
	return m
}

func (s *Sessions) evictLocked(now time.Time) {
	if s.idle <= 0 || now.Sub(s.lastGC) < s.idle/2 {
		return
	}
	for id, e := range s.managers {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.managers, id)
		}
	}
	s.lastGC = now
}

// Forget drops the in-memory session, e.g. on logout.
func (s *Sessions) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managers, userID)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managers)
}
