package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrDuplicateToken is returned by [Store.Create] when the token value
// already exists. With cryptographically random tokens this is negligible
// in practice, but it must surface as a defined failure, never silently.
var ErrDuplicateToken = errors.New("token value already exists")

// Record is one live refresh session.
type Record struct {
	ID            string `gorm:"primaryKey;size:36"`
	OwnerID       string `gorm:"index;not null"`
	TokenValue    string `gorm:"uniqueIndex;not null"`
	CorrelationID string `gorm:"size:36"`
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	LastUsedAt    time.Time
}

// TableName sets the storage table for [Record].
func (Record) TableName() string {
	return "refresh_sessions"
}

// Meta carries the issuance context stored alongside a new record.
type Meta struct {
	CorrelationID string
	IP            string
	UserAgent     string
}

// Store provides the token-record operations over a gorm-managed table.
// The session lifecycle coordinator is its only writer.
type Store struct {
	db *gorm.DB
}

// New wraps an existing gorm handle. The schema must already be in place;
// see [Migrate] and [Open].
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and migrates the refresh-session table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("tokenstore: connect failed: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the refresh-session table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("tokenstore: migration failed: %w", err)
	}
	return nil
}

// Create persists a new refresh session for ownerID. Fails with
// [ErrDuplicateToken] when tokenValue is already recorded.
func (s *Store) Create(ctx context.Context, ownerID, tokenValue string, meta Meta) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		TokenValue:    tokenValue,
		CorrelationID: meta.CorrelationID,
		IP:            meta.IP,
		UserAgent:     meta.UserAgent,
		CreatedAt:     now,
		LastUsedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("tokenstore: create failed: %w", err)
	}

	return rec, nil
}

// FindByToken returns the record holding tokenValue, or nil when absent.
func (s *Store) FindByToken(ctx context.Context, tokenValue string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("token_value = ?", tokenValue).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenstore: lookup failed: %w", err)
	}
	return &rec, nil
}

// FindAllByOwner returns every record for ownerID, oldest first.
func (s *Store) FindAllByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("tokenstore: owner lookup failed: %w", err)
	}
	return recs, nil
}

// MarkUsed stamps the record's last-used time. A miss is not an error.
func (s *Store) MarkUsed(ctx context.Context, tokenValue string) error {
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("token_value = ?", tokenValue).
		Update("last_used_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("tokenstore: mark used failed: %w", err)
	}
	return nil
}

// DeleteByToken removes the record holding tokenValue and returns it, or
// nil when no record was deleted. The delete itself is the race resolver:
// of two concurrent rotations on the same token only one observes a
// deleted row, the other sees nil and must treat the token as reused.
func (s *Store) DeleteByToken(ctx context.Context, tokenValue string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("token_value = ?", tokenValue).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenstore: lookup failed: %w", err)
	}

	res := s.db.WithContext(ctx).Where("token_value = ?", tokenValue).Delete(&Record{})
	if res.Error != nil {
		return nil, fmt.Errorf("tokenstore: delete failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return &rec, nil
}

// DeleteOneByOwner removes a single record for ownerID (the oldest) and
// returns it, or nil when the owner has none. Used for single-slot
// rotation cleanup.
func (s *Store) DeleteOneByOwner(ctx context.Context, ownerID string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenstore: lookup failed: %w", err)
	}

	res := s.db.WithContext(ctx).Where("id = ?", rec.ID).Delete(&Record{})
	if res.Error != nil {
		return nil, fmt.Errorf("tokenstore: delete failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return &rec, nil
}

// DeleteByID removes the record with id, scoped to ownerID so one owner
// cannot revoke another's session. Reports whether a row was deleted.
func (s *Store) DeleteByID(ctx context.Context, ownerID, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&Record{})
	if res.Error != nil {
		return false, fmt.Errorf("tokenstore: delete failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteOthers removes every record for ownerID except keepID and reports
// how many were deleted.
func (s *Store) DeleteOthers(ctx context.Context, ownerID, keepID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("owner_id = ? AND id <> ?", ownerID, keepID).
		Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("tokenstore: bulk delete failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAllByOwner removes every record for ownerID and reports how many
// were deleted.
func (s *Store) DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("tokenstore: bulk delete failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
