// Package statecache persists the surviving remnant of a session
// (refresh token, user id, active company) in a local sqlite file so
// a restart can restore the signed-in state and tenant selection
// before the identity provider is reachable.
package statecache

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go.uber.org/zap"

	appidentity "github.com/erp/console/internal/application/identity"
	"github.com/erp/console/internal/infrastructure/logger"
)

// singletonID keys the single cached-session row
const singletonID = "current"

// sessionRecord is the persistence model for the cached session
type sessionRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:64"`
	RefreshToken string `gorm:"size:2048"`
	CompanyID    string `gorm:"size:64"`
	UpdatedAt    time.Time
}

// TableName returns the table name for sessionRecord
func (sessionRecord) TableName() string {
	return "cached_sessions"
}

// Store implements the application's SessionCache on sqlite via GORM
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (and migrates) the state cache at the given path.
// Use ":memory:" for an ephemeral cache.
func Open(path string, zapLogger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLogger(zapLogger, gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, err
	}

	return &Store{db: db, logger: zapLogger}, nil
}

// Load returns the cached session, or (nil, nil) when none exists
func (s *Store) Load(ctx context.Context) (*appidentity.CachedSession, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", singletonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &appidentity.CachedSession{
		UserID:       record.UserID,
		RefreshToken: record.RefreshToken,
		CompanyID:    record.CompanyID,
	}, nil
}

// Save replaces the cached session
func (s *Store) Save(ctx context.Context, session appidentity.CachedSession) error {
	record := sessionRecord{
		ID:           singletonID,
		UserID:       session.UserID,
		RefreshToken: session.RefreshToken,
		CompanyID:    session.CompanyID,
		UpdatedAt:    time.Now(),
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

// Clear removes the cached session; clearing an empty cache is a no-op
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", singletonID).Error
}

// SaveActiveCompany updates only the persisted company selection.
// Without a cached session there is nothing to update.
func (s *Store) SaveActiveCompany(ctx context.Context, companyID string) error {
	return s.db.WithContext(ctx).
		Model(&sessionRecord{}).
		Where("id = ?", singletonID).
		Updates(map[string]any{
			"company_id": companyID,
			"updated_at": time.Now(),
		}).Error
}
