package postgres

import (
	"context"
	"errors"
	"fmt"

	"opsauth/internal/domain/auth"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityDirectory is a Postgres implementation of auth.IdentityAdmin
type IdentityDirectory struct {
	pool *pgxpool.Pool
}

var _ auth.IdentityAdmin = (*IdentityDirectory)(nil)

// NewIdentityDirectory constructs an IdentityDirectory
func NewIdentityDirectory(pool *pgxpool.Pool) *IdentityDirectory {
	return &IdentityDirectory{pool: pool}
}

// NewPool opens a pgx connection pool and checks connectivity
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// GetCustomClaims returns the custom claims of a subject; unknown subjects have none
func (d *IdentityDirectory) GetCustomClaims(ctx context.Context, subjectID string) (map[string]any, error) {
	var claims map[string]any
	err := d.pool.QueryRow(ctx, `SELECT custom_claims FROM identities WHERE id=$1`, subjectID).Scan(&claims)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("get custom claims: %w", err)
	}
	if claims == nil {
		claims = map[string]any{}
	}
	return claims, nil
}

func (d *IdentityDirectory) GetIdentity(ctx context.Context, subjectID string) (*auth.Identity, error) {
	var identity auth.Identity
	err := d.pool.QueryRow(ctx, `SELECT id,email,custom_claims,updated_at FROM identities WHERE id=$1`, subjectID).
		Scan(&identity.SubjectID, &identity.Email, &identity.CustomClaims, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("identity %s: %w", subjectID, auth.ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &identity, nil
}

func (d *IdentityDirectory) SetCustomClaims(ctx context.Context, subjectID, email string, claims map[string]any) error {
	if subjectID == "" {
		return fmt.Errorf("subject ID is required")
	}
	if claims == nil {
		claims = map[string]any{}
	}
	_, err := d.pool.Exec(ctx, `INSERT INTO identities (id,email,custom_claims) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email = '' THEN identities.email ELSE EXCLUDED.email END,
			custom_claims = EXCLUDED.custom_claims,
			updated_at = now()`,
		subjectID, auth.NormalizeEmail(email), claims)
	if err != nil {
		return fmt.Errorf("set custom claims: %w", err)
	}
	return nil
}

func (d *IdentityDirectory) DeleteIdentity(ctx context.Context, subjectID string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, subjectID)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity %s: %w", subjectID, auth.ErrIdentityNotFound)
	}
	return nil
}
