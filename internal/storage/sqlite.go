package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type kvEntry struct {
	Key       string `gorm:"column:name;primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// SQLiteStore keeps entries in a local sqlite file.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("storage: sqlite path must be provided")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite db: %w", err)
	}

	// sqlite serializes writers; a single connection also keeps ":memory:" shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("storage: migrate sqlite db: %w", err)
	}

	if logger != nil {
		logger.Debug("opened sqlite store", slog.String("path", path))
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e kvEntry
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&e).Error
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	return e.Value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]kvEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, kvEntry{Key: e.Key, Value: e.Value, UpdatedAt: now})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Where("name IN ?", keys).Delete(&kvEntry{}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
