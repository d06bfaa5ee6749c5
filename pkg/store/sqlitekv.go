package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// kvRow is the SQLite representation of one key and its string list,
// stored as a JSON array.
type kvRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (kvRow) TableName() string { return "kv_entries" }

// SQLiteKV is a KV backed by a SQLite database.
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV opens (and migrates) a SQLite-backed KV at path.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// GetStringList implements KV.
func (kv *SQLiteKV) GetStringList(key string) ([]string, error) {
	var row kvRow
	err := kv.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}

	var values []string
	if err := json.Unmarshal([]byte(row.Value), &values); err != nil {
		return nil, fmt.Errorf("failed to decode key %q: %w", key, err)
	}
	return values, nil
}

// SetStringList implements KV.
func (kv *SQLiteKV) SetStringList(key string, values []string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode key %q: %w", key, err)
	}
	row := kvRow{Key: key, Value: string(encoded)}
	if err := kv.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Remove implements KV.
func (kv *SQLiteKV) Remove(key string) error {
	if err := kv.db.Delete(&kvRow{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	return nil
}
