package sessiongate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogout_RevokesAccessAndRemovesSession(t *testing.T) {
	engine, db, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "198.51.100.1"}

	pair := loginAlice(t, engine)

	if err := engine.Logout(ctx, pair.AccessToken, pair.RefreshToken, meta); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if got := countSessions(t, db, "user-alice"); got != 0 {
		t.Fatalf("expected session removed, got %d", got)
	}

	// The still-unexpired access token is now refused.
	if _, err := engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogout_NoRefreshTokenPurgesAllSessions(t *testing.T) {
	engine, db, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "198.51.100.1"}

	pair := loginAlice(t, engine)
	loginAlice(t, engine)
	if got := countSessions(t, db, "user-alice"); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	// Without a refresh token the holding session cannot be singled out,
	// so the logout falls back to removing every one of them.
	if err := engine.Logout(ctx, pair.AccessToken, "", meta); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if got := countSessions(t, db, "user-alice"); got != 0 {
		t.Fatalf("expected all sessions purged, got %d", got)
	}
	if _, err := engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogout_BlockEntryBoundedByTokenLifetime(t *testing.T) {
	engine, _, mr := newTestEngine(t, testConfig())
	ctx := context.Background()

	pair := loginAlice(t, engine)
	if err := engine.Logout(ctx, pair.AccessToken, pair.RefreshToken, RequestMeta{}); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	// The block entry self-expires with the token's remaining lifetime;
	// nothing should outlive the access TTL.
	key := "sg:block:" + pair.CorrelationID
	if !mr.Exists(key) {
		t.Fatalf("expected block entry %s", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("block TTL out of bounds: %v", ttl)
	}
}

func TestLogout_InvalidAccessToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	err := engine.Logout(context.Background(), "garbage", "", RequestMeta{})
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogout_MissingRefreshRecordIsFine(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "198.51.100.1"}

	pair := loginAlice(t, engine)

	// Rotate first so the presented refresh token no longer has a record.
	if _, err := engine.Refresh(ctx, pair.RefreshToken, meta); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.AccessToken, pair.RefreshToken, meta); err != nil {
		t.Fatalf("logout must tolerate a missing record: %v", err)
	}
	if _, err := engine.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}
