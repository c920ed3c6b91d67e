package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth_backend/internal/config"
	"auth_backend/internal/credentials"
	"auth_backend/internal/models"
	"auth_backend/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

const userColumns = `
	id, email, password_hash, first_name, last_name, provider, provider_id,
	email_verified, verification_otp_hash, verification_otp_expires_at,
	password_reset_otp_hash, password_reset_otp_expires_at, created_at, updated_at`

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Provider == "" {
		user.Provider = models.ProviderDefault
	}

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, provider, provider_id, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at;
	`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PassHash,
		user.FirstName,
		user.LastName,
		string(user.Provider),
		user.ProviderID,
		user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return user, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1;`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1;`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PassHash,
		&u.FirstName,
		&u.LastName,
		&u.Provider,
		&u.ProviderID,
		&u.EmailVerified,
		&u.VerificationOTPHash,
		&u.VerificationOTPExpiresAt,
		&u.PasswordResetOTPHash,
		&u.PasswordResetOTPExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

func (r *PostgresRepo) SetOTP(ctx context.Context, userID string, purpose credentials.Purpose, hash []byte, expiresAt time.Time) error {
	const op = "storage.postgres.SetOTP"

	var query string

	switch purpose {
	case credentials.PurposeVerification:
		query = `
			UPDATE users
			SET verification_otp_hash = $1, verification_otp_expires_at = $2, updated_at = now()
			WHERE id = $3;
		`
	case credentials.PurposePasswordReset:
		query = `
			UPDATE users
			SET password_reset_otp_hash = $1, password_reset_otp_expires_at = $2, updated_at = now()
			WHERE id = $3;
		`
	default:
		return fmt.Errorf("%s: unknown purpose %q", op, purpose)
	}

	tag, err := r.pool.Exec(ctx, query, hash, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	const op = "storage.postgres.MarkEmailVerified"

	query := `
		UPDATE users
		SET email_verified = TRUE,
		    verification_otp_hash = NULL,
		    verification_otp_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1;
	`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) ResetPassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.postgres.ResetPassword"

	query := `
		UPDATE users
		SET password_hash = $1,
		    password_reset_otp_hash = NULL,
		    password_reset_otp_expires_at = NULL,
		    updated_at = now()
		WHERE id = $2;
	`

	if _, err := r.pool.Exec(ctx, query, passHash, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2;`

	if _, err := r.pool.Exec(ctx, query, passHash, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, rec models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens (id, token, user_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4, FALSE);
	`

	if _, err := r.pool.Exec(ctx, query, rec.ID, rec.Token, rec.UserID, rec.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) FindRefreshToken(ctx context.Context, tokenStr string) (models.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = $1;
	`

	var rec models.RefreshToken

	err := r.pool.QueryRow(ctx, query, tokenStr).Scan(
		&rec.ID,
		&rec.Token,
		&rec.UserID,
		&rec.ExpiresAt,
		&rec.Revoked,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
		}

		return models.RefreshToken{}, err
	}

	return rec, nil
}

func (r *PostgresRepo) RevokeRefreshToken(ctx context.Context, tokenStr string) error {
	const op = "storage.postgres.RevokeRefreshToken"

	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1;`

	tag, err := r.pool.Exec(ctx, query, tokenStr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrRefreshTokenNotFound
	}

	return nil
}

// RotateRefreshToken revokes the old record and inserts the replacement
// in one transaction. The conditional update claims the old token, so of
// two concurrent rotations exactly one commits; the other sees
// storage.ErrRefreshTokenRevoked.
func (r *PostgresRepo) RotateRefreshToken(ctx context.Context, oldTokenStr string, next models.RefreshToken) error {
	const op = "storage.postgres.RotateRefreshToken"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var id string

	err = tx.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token = $1 AND revoked = FALSE
		RETURNING id;
	`, oldTokenStr).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrRefreshTokenRevoked
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, token, user_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4, FALSE);
	`, next.ID, next.Token, next.UserID, next.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
