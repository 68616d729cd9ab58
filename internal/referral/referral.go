// Package referral records which published handle referred a new
// account. At most one referral row ever exists per referred account,
// and a referral is written at most a bounded number of times: the
// pending marker carries an attempt count instead of being retried
// forever on every save.
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Referral links a new account to the handle that referred it.
type Referral struct {
	ReferredID     uuid.UUID `json:"referred_id"     db:"referred_id"`
	ReferrerHandle string    `json:"referrer_handle" db:"referrer_handle"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// Outcome is the settled state of a pending referral after one
// recording attempt.
type Outcome string

const (
	// OutcomeRecorded: the referral row exists (written now or
	// earlier); the pending marker is cleared and never retried.
	OutcomeRecorded Outcome = "recorded"
	// OutcomePending: this attempt failed but the budget is not
	// exhausted; the marker survives for the next save.
	OutcomePending Outcome = "pending"
	// OutcomePermanentlyFailed: the attempt budget is exhausted; the
	// marker is dropped and no further attempts will be made.
	OutcomePermanentlyFailed Outcome = "permanently_failed"
)

// Execer is the subset of pgxpool.Pool the repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository stores referrals in PostgreSQL.
type Repository struct {
	db Execer
}

// NewRepository creates a Repository.
func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

// Record upserts the referral keyed on the referred account. A repeat
// write for the same account is a no-op: the first referrer wins.
func (r *Repository) Record(ctx context.Context, referredID uuid.UUID, referrerHandle string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO referrals (referred_id, referrer_handle, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (referred_id) DO NOTHING`,
		referredID, referrerHandle, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record referral: %w", err)
	}
	return nil
}

// DeleteByReferred removes the referral row for an account. Used by
// account deletion; deleting an absent row is not an error.
func (r *Repository) DeleteByReferred(ctx context.Context, referredID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM referrals WHERE referred_id = $1`, referredID); err != nil {
		return fmt.Errorf("delete referral: %w", err)
	}
	return nil
}
