package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/domain"
)

// SessionRegistry owns all interaction sessions. Each session carries its
// own mutex, so mutations for one session are fully serialized while
// different sessions proceed in parallel. Sessions are created on first
// message and evicted after the idle TTL.
type SessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	idleTTL time.Duration
	now     func() time.Time
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.InteractionSession
	// refs counts in-flight requests so the sweeper never evicts a
	// session that is currently locked or about to be.
	refs       int
	lastAccess time.Time
}

// SessionHandle is a locked session. The holder has exclusive access to
// the session until Release.
type SessionHandle struct {
	registry *SessionRegistry
	entry    *sessionEntry
}

// Session returns the locked session for mutation.
func (h *SessionHandle) Session() *domain.InteractionSession {
	return h.entry.session
}

// Release unlocks the session and updates its idle clock.
func (h *SessionHandle) Release() {
	h.entry.lastAccess = h.registry.now()
	h.entry.mu.Unlock()

	h.registry.mu.Lock()
	h.entry.refs--
	h.registry.mu.Unlock()
}

// NewSessionRegistry creates a registry with the given idle eviction TTL.
func NewSessionRegistry(idleTTL time.Duration) *SessionRegistry {
	return &SessionRegistry{
		entries: make(map[string]*sessionEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Acquire returns the session for sessionID, creating it on first use, and
// blocks until exclusive access is held. Rapid-fire messages on the same
// session therefore observe each other's completed writes.
func (r *SessionRegistry) Acquire(sessionID, userID string) *SessionHandle {
	r.mu.Lock()
	entry, ok := r.entries[sessionID]
	if !ok {
		now := r.now()
		entry = &sessionEntry{
			session: &domain.InteractionSession{
				ID:              sessionID,
				UserID:          userID,
				CreatedAt:       now,
				LastInteraction: now,
			},
			lastAccess: now,
		}
		r.entries[sessionID] = entry
	}
	entry.refs++
	r.mu.Unlock()

	entry.mu.Lock()
	return &SessionHandle{registry: r, entry: entry}
}

// Peek returns a snapshot copy of a session's state, or nil when absent.
// Used by the admin surface; does not touch the idle clock.
func (r *SessionRegistry) Peek(sessionID string) *domain.InteractionSession {
	r.mu.Lock()
	entry, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	snapshot := *entry.session
	snapshot.Messages = append([]domain.SessionMessage(nil), entry.session.Messages...)
	snapshot.SafetyFlags = append([]domain.TriggerType(nil), entry.session.SafetyFlags...)
	return &snapshot
}

// Sweep evicts idle, unreferenced sessions and returns how many were
// removed.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, entry := range r.entries {
		if entry.refs == 0 && entry.lastAccess.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps idle sessions on an interval until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("orchestrator: session sweep")
			}
		}
	}
}
