package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SettingsKey is the key panel settings are stored under.
const SettingsKey = "webnote_settings"

// Settings are the panel preferences.
type Settings struct {
	AutoOpenPanel bool `json:"autoOpenPanel"`
}

// DefaultSettings is what GetSettings returns before anything was saved.
func DefaultSettings() Settings {
	return Settings{AutoOpenPanel: true}
}

// GetSettings returns the stored settings, or the defaults.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, SettingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	st := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Settings{}, fmt.Errorf("store: decode settings: %w", err)
	}
	return st, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		SettingsKey, string(raw), time.Now().UnixMilli(),
	)
	return err
}
