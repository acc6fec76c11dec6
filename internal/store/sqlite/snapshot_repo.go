package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"console_go/internal/domain"
	"console_go/internal/security"
)

// SnapshotRepo stores the last successfully fetched conversation list per
// scope. Payloads are encrypted at rest: they carry customer names, phone
// numbers and message previews.
type SnapshotRepo struct {
	db        *sql.DB
	encryptor *security.Encryptor
}

func NewSnapshotRepo(db *sql.DB, encryptor *security.Encryptor) *SnapshotRepo {
	return &SnapshotRepo{db: db, encryptor: encryptor}
}

var _ domain.SnapshotRepository = (*SnapshotRepo)(nil)

func (r *SnapshotRepo) Load(ctx context.Context, scopeKey string) ([]*domain.Conversation, time.Time, error) {
	var payload string
	var savedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT payload, saved_at FROM snapshots WHERE scope_key = ?
	`, scopeKey).Scan(&payload, &savedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}

	plain, err := r.encryptor.Decrypt(payload)
	if err != nil {
		// Wrong key or corrupted row; treat as absent rather than fatal.
		return nil, time.Time{}, domain.ErrNotFound
	}
	var convs []*domain.Conversation
	if err := json.Unmarshal(plain, &convs); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return convs, savedAt, nil
}

func (r *SnapshotRepo) Save(ctx context.Context, scopeKey string, convs []*domain.Conversation) error {
	plain, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	payload, err := r.encryptor.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (scope_key, payload, saved_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(scope_key) DO UPDATE SET payload = excluded.payload, saved_at = CURRENT_TIMESTAMP
	`, scopeKey, payload)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
