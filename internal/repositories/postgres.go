package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vidhub/backend/internal/db"
	"github.com/vidhub/backend/internal/models"
)

const userColumns = `id, username, email, fullname, avatar, cover_image, password_hash,
        COALESCE(refresh_token, ''), created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, fullname, avatar, cover_image, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapError(err, "insert user")
	}

	return nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	if !validID(id) {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "select user by id", `WHERE id = $1`, id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "select user by email", `WHERE email = $1`, normalizeLogin(email))
}

// FindByLogin fetches the user matching either identifier. Blank identifiers
// are ignored.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	username, email = normalizeLogin(username), normalizeLogin(email)
	if username == "" && email == "" {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "select user by login",
		`WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2) ORDER BY created_at LIMIT 1`,
		username, email)
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *PostgresUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
    `, normalizeLogin(username), normalizeLogin(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// UpdateAccount changes the display name and email.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	if !validID(id) {
		return models.User{}, ErrNotFound
	}
	return r.updateOne(ctx, "update account",
		`SET fullname = $2, email = $3, updated_at = now() WHERE id = $1`,
		id, fullName, email)
}

// UpdatePassword stores a new password hash. Hashing is the caller's job.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := r.updateOne(ctx, "update password",
		`SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	return err
}

// UpdateAvatar replaces the avatar URL.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, url string) (models.User, error) {
	if !validID(id) {
		return models.User{}, ErrNotFound
	}
	return r.updateOne(ctx, "update avatar",
		`SET avatar = $2, updated_at = now() WHERE id = $1`, id, url)
}

// UpdateCoverImage replaces the cover image URL.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, url string) (models.User, error) {
	if !validID(id) {
		return models.User{}, ErrNotFound
	}
	return r.updateOne(ctx, "update cover image",
		`SET cover_image = $2, updated_at = now() WHERE id = $1`, id, url)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, where string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, args...)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, mapError(err, op)
	}
	return user, nil
}

func (r *PostgresUserRepository) updateOne(ctx context.Context, op, set string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `UPDATE users `+set+` RETURNING `+userColumns, args...)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, mapError(err, op)
	}
	return user, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage,
		&user.PasswordHash, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// normalizeLogin lowercases identifiers the way they are stored.
func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresUserRepository)(nil)
