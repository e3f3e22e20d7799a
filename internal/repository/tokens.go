package repository

import (
	"context"
	"fmt"
)

// AddRefreshToken persists an issued refresh token and its expiry epoch
// into the whitelist.
func (r *Repository) AddRefreshToken(ctx context.Context, token string, expiresAt int64) error {
	query := `INSERT INTO refresh_tokens (token, expires_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, r.q(query), token, expiresAt); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", translate(err))
	}
	return nil
}

// ConsumeRefreshToken deletes the whitelist row for token and reports
// whether it existed. The single DELETE is the whole unit of work, so two
// racing rotations of the same token see exactly one winner.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM refresh_tokens WHERE token = $1`), token)
	if err != nil {
		return false, fmt.Errorf("failed to consume refresh token: %w", translate(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	return rows > 0, nil
}

// DeleteExpiredRefreshTokens removes whitelist rows whose stored expiry
// is at or before now. Returns the number of rows removed.
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM refresh_tokens WHERE expires_at <= $1`), now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", translate(err))
	}
	return res.RowsAffected()
}
