package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"console_go/internal/domain"
)

// Preference keys used by the console.
const (
	PrefDarkMode     = "dark_mode"
	PrefLastCategory = "last_category"
	PrefLastScope    = "last_scope"
)

type PreferenceRepo struct {
	db *sql.DB
}

func NewPreferenceRepo(db *sql.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

var _ domain.PreferenceRepository = (*PreferenceRepo)(nil)

func (r *PreferenceRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE key = ?
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, nil
}

func (r *PreferenceRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}
