package repositories

import (
	"context"
	"fmt"
)

// SetRefreshToken stores the user's single active refresh token, replacing any
// previous value. An empty token clears the column, which logs the user out.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	if !validID(id) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = NULLIF($2, ''), updated_at = now()
        WHERE id = $1
    `, id, token)
	if err != nil {
		return mapError(err, "update refresh token")
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
