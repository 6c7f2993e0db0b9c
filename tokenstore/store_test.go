package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled :memory: DSN would hand every connection its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))

	return New(db), db
}

func setCreatedAt(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&Record{}).Where("id = ?", id).Update("created_at", at).Error)
}

func setLastUsedAt(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&Record{}).Where("id = ?", id).Update("last_used_at", at).Error)
}

func TestCreateThenFindRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "tok-1", Meta{
		CorrelationID: "jti-1",
		IP:            "203.0.113.7",
		UserAgent:     "cli/1.0",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.LastUsedAt.IsZero())

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "owner-1", found.OwnerID)
	assert.Equal(t, "tok-1", found.TokenValue)
	assert.Equal(t, "jti-1", found.CorrelationID)
	assert.Equal(t, "203.0.113.7", found.IP)
	assert.Equal(t, "cli/1.0", found.UserAgent)
}

func TestFindByToken_AbsentIsNilNotError(t *testing.T) {
	store, _ := newTestStore(t)

	found, err := store.FindByToken(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreate_DuplicateTokenValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "owner-1", "tok-1", Meta{})
	require.NoError(t, err)

	_, err = store.Create(ctx, "owner-2", "tok-1", Meta{})
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestFindAllByOwner_OrderedByCreation(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	ids := make([]string, 3)
	for i, tok := range []string{"tok-b", "tok-c", "tok-a"} {
		rec, err := store.Create(ctx, "owner-1", tok, Meta{})
		require.NoError(t, err)
		ids[i] = rec.ID
	}
	// Insertion order scrambled on purpose; created_at decides.
	setCreatedAt(t, db, ids[0], base.Add(2*time.Hour))
	setCreatedAt(t, db, ids[1], base)
	setCreatedAt(t, db, ids[2], base.Add(time.Hour))

	_, err := store.Create(ctx, "owner-2", "tok-other", Meta{})
	require.NoError(t, err)

	recs, err := store.FindAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, ids[1], recs[0].ID)
	assert.Equal(t, ids[2], recs[1].ID)
	assert.Equal(t, ids[0], recs[2].ID)
}

func TestMarkUsed_AdvancesLastUsed(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner-1", "tok-1", Meta{})
	require.NoError(t, err)
	setLastUsedAt(t, db, rec.ID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.MarkUsed(ctx, "tok-1"))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.LastUsedAt.After(found.CreatedAt.Add(-time.Minute)))
	assert.True(t, found.LastUsedAt.Year() >= 2026)

	// A miss must be a no-op, not an error.
	require.NoError(t, store.MarkUsed(ctx, "missing"))
}

func TestDeleteByToken_ConsumesExactlyOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "tok-1", Meta{})
	require.NoError(t, err)

	deleted, err := store.DeleteByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID, deleted.ID)

	// Second delete observes nothing: the reuse-detection signal.
	again, err := store.DeleteByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestDeleteOneByOwner_RemovesOldest(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Create(ctx, "owner-1", "tok-1", Meta{})
	require.NoError(t, err)
	second, err := store.Create(ctx, "owner-1", "tok-2", Meta{})
	require.NoError(t, err)
	setCreatedAt(t, db, first.ID, base)
	setCreatedAt(t, db, second.ID, base.Add(time.Hour))

	deleted, err := store.DeleteOneByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, first.ID, deleted.ID)

	remaining, err := store.FindAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)

	none, err := store.DeleteOneByOwner(ctx, "owner-nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeleteByID_OwnerScoped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner-1", "tok-1", Meta{})
	require.NoError(t, err)

	// The wrong owner cannot revoke by guessing the id.
	ok, err := store.DeleteByID(ctx, "owner-2", rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.DeleteByID(ctx, "owner-1", rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteByID(ctx, "owner-1", rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteOthers_KeepsOnlyGivenID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	keep, err := store.Create(ctx, "owner-1", "tok-keep", Meta{})
	require.NoError(t, err)
	for _, tok := range []string{"tok-1", "tok-2"} {
		_, err := store.Create(ctx, "owner-1", tok, Meta{})
		require.NoError(t, err)
	}
	other, err := store.Create(ctx, "owner-2", "tok-other", Meta{})
	require.NoError(t, err)

	count, err := store.DeleteOthers(ctx, "owner-1", keep.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	recs, err := store.FindAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, keep.ID, recs[0].ID)

	foreign, err := store.FindAllByOwner(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, foreign, 1)
	assert.Equal(t, other.ID, foreign[0].ID)
}

func TestDeleteAllByOwner_ReportsCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, tok := range []string{"tok-1", "tok-2", "tok-3"} {
		_, err := store.Create(ctx, "owner-1", tok, Meta{})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "owner-2", "tok-keep", Meta{})
	require.NoError(t, err)

	count, err := store.DeleteAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	recs, err := store.FindAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	kept, err := store.FindByToken(ctx, "tok-keep")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	zero, err := store.DeleteAllByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, zero)
}
