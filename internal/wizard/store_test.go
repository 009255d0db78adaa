package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/tbeckett/slotwizard/internal/leagueapi"
)

func storedSession(store *Store, division string) *Session {
	session := newSession(division, nil, leagueapi.LeagueSettings{}, store.Now())
	store.Add(session)
	return session
}

func TestStoreExpiresIdleSessions(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(time.Hour, clock)
	session := storedSession(store, "10U")

	if _, err := store.Get(session.ID); err != nil {
		t.Fatalf("get fresh session: %v", err)
	}

	clock.Advance(59 * time.Minute)
	if _, err := store.Get(session.ID); err != nil {
		t.Fatalf("get within ttl: %v", err)
	}

	// The previous Get touched the session, so the idle window restarts.
	clock.Advance(59 * time.Minute)
	if _, err := store.Get(session.ID); err != nil {
		t.Fatalf("get after touch: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired get err = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("store len = %d after expired get, want 0", store.Len())
	}
}

func TestStoreSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(time.Hour, clock)
	stale := storedSession(store, "10U")
	clock.Advance(45 * time.Minute)
	fresh := storedSession(store, "12U")

	clock.Advance(30 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if _, err := store.Get(stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session survived sweep: %v", err)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(0, clock)
	session := storedSession(store, "10U")

	if !store.Delete(session.ID) {
		t.Error("delete reported missing session")
	}
	if store.Delete(session.ID) {
		t.Error("second delete reported success")
	}
	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("get after delete err = %v, want ErrSessionNotFound", err)
	}
}
