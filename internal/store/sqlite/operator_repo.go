package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"console_go/internal/domain"
)

type OperatorRepo struct {
	db *sql.DB
}

func NewOperatorRepo(db *sql.DB) *OperatorRepo {
	return &OperatorRepo{db: db}
}

var _ domain.OperatorRepository = (*OperatorRepo)(nil)

func (r *OperatorRepo) Create(ctx context.Context, username, hashedPassword string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operators (username, hashed_password)
		VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET hashed_password = excluded.hashed_password
	`, username, hashedPassword)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (r *OperatorRepo) GetHashedPassword(ctx context.Context, username string) (string, error) {
	var hashed string
	err := r.db.QueryRowContext(ctx, `
		SELECT hashed_password FROM operators WHERE username = ?
	`, username).Scan(&hashed)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get operator: %w", err)
	}
	return hashed, nil
}
