package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAccountNotFound is returned when no account exists for a lookup.
var ErrAccountNotFound = errors.New("account not found")

// ErrCodeInvalid is returned when a submitted sign-in code does not
// match the one issued.
var ErrCodeInvalid = errors.New("sign-in code is incorrect")

// ErrCodeExpired is returned when no live code exists for the address,
// either because it expired or because one was never requested.
var ErrCodeExpired = errors.New("sign-in code expired, request a new one")

// ErrTooManyAttempts is returned when verification attempts for one
// code exceed the cap. The code is burned; a new one must be requested.
var ErrTooManyAttempts = errors.New("too many attempts, request a new code")

// Account is an authenticated identity. Profiles hang off the account
// ID; an account always exists before its profile does.
type Account struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Querier is the subset of pgxpool.Pool the repository uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository stores accounts in PostgreSQL.
type AccountRepository struct {
	db Querier
}

func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreateByEmail returns the account for an address, creating it on
// first sign-in. Proving control of the inbox is what verification
// means here, so email_verified is set on every successful code login.
func (r *AccountRepository) GetOrCreateByEmail(ctx context.Context, email string) (*Account, error) {
	now := time.Now().UTC()
	a := &Account{}
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (id, email, email_verified, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (email) DO UPDATE SET email_verified = TRUE, updated_at = $3
		RETURNING id, email, email_verified, created_at, updated_at`,
		uuid.New(), email, now,
	).Scan(&a.ID, &a.Email, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create account: %w", err)
	}
	return a, nil
}

// GetByID returns an account or ErrAccountNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a := &Account{}
	err := r.db.QueryRow(ctx, `
		SELECT id, email, email_verified, created_at, updated_at
		FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// Delete removes an account. Deleting an absent account is not an
// error; the deletion cascade must be re-runnable.
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
