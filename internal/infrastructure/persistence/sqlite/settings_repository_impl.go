package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// SettingsRepositoryImpl implements repository.SettingsRepository with SQLite
type SettingsRepositoryImpl struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SQLite-based settings repository
func NewSettingsRepository(db *sql.DB) repository.SettingsRepository {
	return &SettingsRepositoryImpl{db: db}
}

// Get returns the value stored under key
func (r *SettingsRepositoryImpl) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := executor(ctx, r.db).QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting failed: %w", err)
	}
	return value, nil
}

// Set stores value under key
func (r *SettingsRepositoryImpl) Set(ctx context.Context, key, value string) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set setting failed: %w", err)
	}
	return nil
}

// Delete removes key
func (r *SettingsRepositoryImpl) Delete(ctx context.Context, key string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting failed: %w", err)
	}
	return nil
}
