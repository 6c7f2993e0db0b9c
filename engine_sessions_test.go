package sessiongate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestListSessions_OldestFirstWithoutTokenValues(t *testing.T) {
	engine, db, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	loginAlice(t, engine)
	loginAlice(t, engine)
	loginAlice(t, engine)

	sessions, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}

	// Force distinct creation times and verify the ordering contract.
	setSessionTimes(t, db, sessions[0].ID, base.Add(2*time.Hour), base.Add(2*time.Hour))
	setSessionTimes(t, db, sessions[1].ID, base, base)
	setSessionTimes(t, db, sessions[2].ID, base.Add(time.Hour), base.Add(time.Hour))

	ordered, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !ordered[0].CreatedAt.Before(ordered[1].CreatedAt) || !ordered[1].CreatedAt.Before(ordered[2].CreatedAt) {
		t.Fatalf("sessions not oldest first: %+v", ordered)
	}

	for _, s := range ordered {
		if s.ID == "" || s.CorrelationID == "" {
			t.Fatalf("descriptor incomplete: %+v", s)
		}
	}
}

func TestListSessions_EmptyForUnknownSubject(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	sessions, err := engine.ListSessions(context.Background(), "user-nobody")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}

func TestRevokeSession_ByID(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	pair := loginAlice(t, engine)
	sessions, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if err := engine.RevokeSession(ctx, "user-alice", sessions[0].ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken, RequestMeta{IP: "198.51.100.1"}); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("revoked session token must be dead, got %v", err)
	}
}

func TestRevokeSession_CrossSubjectDenied(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	loginAlice(t, engine)
	sessions, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if err := engine.RevokeSession(ctx, "user-bob", sessions[0].ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := engine.RevokeSession(ctx, "user-alice", "no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	remaining, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("session must survive a denied revoke, got %d", len(remaining))
	}
}

func TestRevokeOtherSessions_KeepsMostRecentlyActive(t *testing.T) {
	engine, db, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	loginAlice(t, engine)
	loginAlice(t, engine)
	loginAlice(t, engine)

	sessions, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// The middle one is the most recently used; it must survive.
	setSessionTimes(t, db, sessions[0].ID, base, base.Add(time.Hour))
	setSessionTimes(t, db, sessions[1].ID, base, base.Add(3*time.Hour))
	setSessionTimes(t, db, sessions[2].ID, base, base.Add(2*time.Hour))

	revoked, err := engine.RevokeOtherSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("revoke others failed: %v", err)
	}
	if len(revoked) != 2 {
		t.Fatalf("expected 2 revoked ids, got %d", len(revoked))
	}
	for _, id := range revoked {
		if id == sessions[1].ID {
			t.Fatal("most recently active session must not be revoked")
		}
	}

	remaining, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != sessions[1].ID {
		t.Fatalf("wrong survivor: %+v", remaining)
	}
}

func TestRevokeOtherSessions_ActivityTieBreaksOnID(t *testing.T) {
	engine, db, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	loginAlice(t, engine)
	loginAlice(t, engine)

	sessions, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	setSessionTimes(t, db, sessions[0].ID, at, at)
	setSessionTimes(t, db, sessions[1].ID, at, at)

	want := sessions[0].ID
	if sessions[1].ID < want {
		want = sessions[1].ID
	}

	if _, err := engine.RevokeOtherSessions(ctx, "user-alice"); err != nil {
		t.Fatalf("revoke others failed: %v", err)
	}

	remaining, err := engine.ListSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != want {
		t.Fatalf("tie must keep the smaller id %s, got %+v", want, remaining)
	}
}

func TestRevokeOtherSessions_SingleSessionNoOp(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	loginAlice(t, engine)

	revoked, err := engine.RevokeOtherSessions(ctx, "user-alice")
	if err != nil {
		t.Fatalf("revoke others failed: %v", err)
	}
	if len(revoked) != 0 {
		t.Fatalf("expected no revocations, got %v", revoked)
	}

	none, err := engine.RevokeOtherSessions(ctx, "user-nobody")
	if err != nil {
		t.Fatalf("revoke others failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no revocations, got %v", none)
	}
}
