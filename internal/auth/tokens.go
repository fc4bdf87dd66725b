package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"membership/internal/store"
)

var ErrTokenRevoked = errors.New("refresh token revoked or unknown")

// TokenRepository tracks issued refresh tokens for rotation checks.
type TokenRepository struct {
	db store.DBTX
}

func NewTokenRepository(db store.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save stores a refresh token for roll.
func (r *TokenRepository) Save(ctx context.Context, roll int, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, roll_no, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), roll, token, expiresAt)
	return err
}

// Consume revokes token and reports ErrTokenRevoked when it was not live.
func (r *TokenRepository) Consume(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND revoked = FALSE AND expires_at > NOW()
	`, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenRevoked
	}
	return nil
}

// RevokeAll marks every token of roll revoked.
func (r *TokenRepository) RevokeAll(ctx context.Context, roll int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE roll_no = $1 AND revoked = FALSE`, roll)
	return err
}
