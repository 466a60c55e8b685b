/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LineupModel represents the lineups table
type LineupModel struct {
	Slot        string    `gorm:"column:slot;primaryKey"`
	Assignments string    `gorm:"column:assignments;type:text;not null"` // JSON object as text
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (LineupModel) TableName() string {
	return "lineups"
}

// SQLStorage keeps lineups in a database table through GORM.
type SQLStorage struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the sqlite database at path and migrates it.
func OpenSQLite(path string) (*SQLStorage, error) {
	if path == "" {
		return nil, errors.New("sqlite storage requires a database path")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewSQLStorage(db)
}

// NewSQLStorage wraps an existing connection and migrates the lineups table.
func NewSQLStorage(db *gorm.DB) (*SQLStorage, error) {
	if err := db.AutoMigrate(&LineupModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate lineups table: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

func (s *SQLStorage) Load(ctx context.Context, slot string) (Assignments, error) {
	var model LineupModel
	result := s.db.WithContext(ctx).Where("slot = ?", slot).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNoLineup
		}
		return nil, fmt.Errorf("failed to find lineup: %w", result.Error)
	}

	var a Assignments
	if err := json.Unmarshal([]byte(model.Assignments), &a); err != nil {
		return nil, fmt.Errorf("failed to decode lineup %s: %w", slot, err)
	}
	return a, nil
}

// Save upserts the lineup row for slot.
func (s *SQLStorage) Save(ctx context.Context, slot string, a Assignments) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode lineup: %w", err)
	}

	model := &LineupModel{
		Slot:        slot,
		Assignments: string(data),
		UpdatedAt:   time.Now().UTC(),
	}

	if result := s.db.WithContext(ctx).Save(model); result.Error != nil {
		return fmt.Errorf("failed to save lineup: %w", result.Error)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
