package devicestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend keeps device entries in the device_entries table. With a
// positive ttl, reads and writes refresh updated_at and Purge drops entries
// idle for longer than ttl, matching the redis backend's sliding expiry.
type GormBackend struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewGormBackend(db *gorm.DB, ttl time.Duration) *GormBackend {
	return &GormBackend{db: db, ttl: ttl, now: time.Now}
}

func (b *GormBackend) ForDevice(deviceID string) Store {
	return &gormStore{backend: b, deviceID: deviceID}
}

func (b *GormBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op; the connection pool belongs to the database package.
func (b *GormBackend) Close() error { return nil }

// Purge deletes entries idle for longer than the ttl and reports how many.
// Without a ttl nothing expires.
func (b *GormBackend) Purge(ctx context.Context) (int64, error) {
	if b.ttl <= 0 {
		return 0, nil
	}
	result := b.db.WithContext(ctx).
		Where("updated_at < ?", b.now().Add(-b.ttl)).
		Delete(&models.DeviceEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge device entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StartExpiry runs Purge every interval until done is closed. It does
// nothing when entries never expire.
func (b *GormBackend) StartExpiry(interval time.Duration, done chan struct{}) {
	if b.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := b.Purge(context.Background())
				if err != nil {
					slog.Error("device entry expiry failed", "error", err)
				} else if n > 0 {
					slog.Info("expired device entries removed", "deleted", n)
				}
			case <-done:
				return
			}
		}
	}()
}

type gormStore struct {
	backend  *GormBackend
	deviceID string
}

func (s *gormStore) scope(ctx context.Context, key string) *gorm.DB {
	return s.backend.db.WithContext(ctx).
		Model(&models.DeviceEntry{}).
		Where("device_id = ? AND key = ?", s.deviceID, key)
}

func (s *gormStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.DeviceEntry
	err := s.scope(ctx, key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read device entry %s: %w", key, err)
	}

	if s.backend.ttl > 0 {
		if err := s.scope(ctx, key).UpdateColumn("updated_at", s.backend.now()).Error; err != nil {
			slog.Warn("failed to refresh device entry", "device_id", s.deviceID, "key", key, "error", err)
		}
	}
	return entry.Value, nil
}

func (s *gormStore) Set(ctx context.Context, key, value string) error {
	entry := models.DeviceEntry{
		DeviceID:  s.deviceID,
		Key:       key,
		Value:     value,
		UpdatedAt: s.backend.now(),
	}
	err := s.backend.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write device entry %s: %w", key, err)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	err := s.backend.db.WithContext(ctx).
		Where("device_id = ? AND key = ?", s.deviceID, key).
		Delete(&models.DeviceEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete device entry %s: %w", key, err)
	}
	return nil
}
