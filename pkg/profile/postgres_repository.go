package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by PostgresRepository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const profileColumns = "id, username, email, email_verified, created_at, updated_at"

// constraint name -> field
var uniqueConstraints = map[string]string{
	"profiles_pkey":         FieldID,
	"profiles_username_key": FieldUsername,
	"profiles_email_key":    FieldEmail,
}

// PostgresRepository implements Repository on the profiles table.
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	return r.queryOne(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (Profile, error) {
	return r.queryOne(ctx, "SELECT "+profileColumns+" FROM profiles WHERE username = $1", username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return r.queryOne(ctx, "SELECT "+profileColumns+" FROM profiles WHERE email = $1", NormalizeEmail(email))
}

func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (Profile, error) {
	return r.queryOne(ctx,
		"UPDATE profiles SET email_verified = $2, updated_at = now() WHERE id = $1 RETURNING "+profileColumns,
		id, verified)
}

func (r *PostgresRepository) Insert(ctx context.Context, p Profile) (Profile, error) {
	p.Email = NormalizeEmail(p.Email)
	err := r.db.QueryRow(ctx,
		`INSERT INTO profiles (id, username, email, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		p.ID, p.Username, p.Email, p.EmailVerified,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return Profile{}, &ConflictError{Field: field, Err: err}
		}
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, sql string, args ...any) (Profile, error) {
	var p Profile
	err := r.db.QueryRow(ctx, sql, args...).Scan(
		&p.ID, &p.Username, &p.Email, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

// uniqueViolation returns the field guarded by the violated unique constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	if field, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
		return field, true
	}
	return pgErr.ConstraintName, true
}
