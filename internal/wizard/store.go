// internal/wizard/store.go
package wizard

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound marks lookups of unknown or expired sessions.
var ErrSessionNotFound = errors.New("wizard session not found")

// DefaultSessionTTL is how long an untouched session survives before the
// janitor reclaims it.
const DefaultSessionTTL = 2 * time.Hour

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type storeEntry struct {
	session  *Session
	lastSeen time.Time
}

// Store is the in-memory session registry. Sessions are transient by
// design; nothing here survives a restart.
type Store struct {
	mu      sync.Mutex
	clock   Clock
	ttl     time.Duration
	entries map[string]*storeEntry
}

// NewStore creates a session store with the given idle TTL. A nil clock
// uses real time.
func NewStore(ttl time.Duration, clock Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Store{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]*storeEntry),
	}
}

func (st *Store) Now() time.Time {
	return st.clock.Now()
}

func (st *Store) Add(session *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries[session.ID] = &storeEntry{session: session, lastSeen: st.clock.Now()}
}

// Get returns a live session and refreshes its idle timer. Expired
// sessions are reclaimed on access and reported as not found.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := st.clock.Now()
	if now.Sub(entry.lastSeen) > st.ttl {
		delete(st.entries, id)
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = now
	return entry.session, nil
}

// Delete removes a session. An in-flight optimizer call for it simply has
// its result discarded when it lands.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	_, ok := st.entries[id]
	delete(st.entries, id)
	return ok
}

// Sweep reclaims every expired session and reports how many were removed.
// The scheduler runs this periodically.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.clock.Now()
	removed := 0
	for id, entry := range st.entries {
		if now.Sub(entry.lastSeen) > st.ttl {
			delete(st.entries, id)
			removed++
		}
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}
