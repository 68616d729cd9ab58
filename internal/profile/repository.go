package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tapfolio/tapfolio/pkg/handle"
	"go.uber.org/zap"
)

// schemaRetryCeiling bounds the adaptive retry ladder for both reads
// and writes: initial attempt with the current capability set, one
// attempt after a capability refresh, one attempt after degrading a
// schema tier. A misreporting backend cannot loop us forever.
const schemaRetryCeiling = 3

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides profile storage over PostgreSQL with
// schema-adaptive reads and writes: the column set used by every query
// is driven by a capability set describing the live schema, refreshed
// whenever the database reports an unknown column.
type Repository struct {
	db     Querier
	logger *zap.Logger

	mu   sync.RWMutex
	caps capabilities
}

// NewRepository creates a Repository. The capability set starts
// optimistic (all known columns); call Init to probe the real schema.
func NewRepository(db Querier, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger, caps: fullCapabilities()}
}

// Init probes the live schema and seeds the capability set. A probe
// failure is non-fatal for the caller: the repository keeps the
// optimistic set and adapts on first unknown-column error.
func (r *Repository) Init(ctx context.Context) error {
	return r.refreshCapabilities(ctx)
}

// Columns returns the column names the repository currently believes
// the profiles table has. Diagnostic use only.
func (r *Repository) Columns() []string {
	caps := r.capabilities()
	names := make([]string, 0, len(caps))
	for _, c := range profileColumns {
		if caps[c.name] {
			names = append(names, c.name)
		}
	}
	return names
}

func (r *Repository) capabilities() capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps
}

// refreshCapabilities rebuilds the capability set from
// information_schema. This replaces error-message sniffing: when the
// database reports an unknown column we re-learn the schema as a whole
// instead of parsing which column the message names.
func (r *Repository) refreshCapabilities(ctx context.Context) error {
	rows, err := r.db.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = 'profiles'`)
	if err != nil {
		return fmt.Errorf("probe profiles schema: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return fmt.Errorf("scan column name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("probe profiles schema: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("profiles table not found in schema")
	}

	caps := capabilitiesFrom(names)
	r.mu.Lock()
	r.caps = caps
	r.mu.Unlock()

	r.logger.Info("profiles schema capabilities refreshed",
		zap.Int("columns", len(caps)),
	)
	return nil
}

// adapt handles an unknown-column error: refresh the capability set
// from the schema, or, if the probe itself fails, drop the highest
// schema tier and carry on with less.
func (r *Repository) adapt(ctx context.Context, op string) {
	tfSchemaRetries.WithLabelValues(op).Inc()
	if err := r.refreshCapabilities(ctx); err == nil {
		return
	}
	r.mu.Lock()
	r.caps = r.caps.degrade()
	r.mu.Unlock()
	r.logger.Warn("schema probe failed, degrading column tier", zap.String("op", op))
}

// FetchByUserID returns the profile owned by the given account, or
// ErrNotFound when no row exists. ErrNotFound means "show the creation
// flow"; any other error is a fetch failure and must be retried, never
// treated as an absent profile.
func (r *Repository) FetchByUserID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.fetchOne(ctx, "id = $1", id)
}

// FetchByHandle returns the profile published under the given handle
// (case-insensitive), or ErrNotFound.
func (r *Repository) FetchByHandle(ctx context.Context, h string) (*Profile, error) {
	return r.fetchOne(ctx, "username = $1", handle.Normalize(h))
}

func (r *Repository) fetchOne(ctx context.Context, where string, arg any) (*Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= schemaRetryCeiling; attempt++ {
		cols := selectColumns(r.capabilities())
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.name
		}
		q := fmt.Sprintf(`SELECT id, %s FROM profiles WHERE %s`,
			strings.Join(names, ", "), where)

		p := &Profile{}
		dests := make([]any, 0, len(cols)+1)
		dests = append(dests, &p.ID)
		for _, c := range cols {
			dests = append(dests, c.scan(p))
		}

		err := r.db.QueryRow(ctx, q, arg).Scan(dests...)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUndefinedColumn(err) {
			lastErr = err
			r.adapt(ctx, "fetch")
			continue
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

// Upsert writes the full candidate field set keyed on the profile ID,
// so exactly one row exists per account; an existing row's non-excluded
// fields are replaced. Each attempt re-sends the complete remaining
// field set with a freshly stamped timestamp: a full upsert,
// not a partial patch. The face descriptor is never part of the general
// write set; it has its own narrow path.
func (r *Repository) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	if strings.TrimSpace(p.Username) == "" {
		return nil, ErrHandleRequired
	}

	excluded := map[string]bool{"face_descriptor": true}

	var lastErr error
	for attempt := 1; attempt <= schemaRetryCeiling; attempt++ {
		stamp(p, time.Now())
		cols := writeColumns(r.capabilities(), excluded)

		names := make([]string, 0, len(cols)+1)
		placeholders := make([]string, 0, len(cols)+1)
		updates := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols)+1)

		names = append(names, "id")
		placeholders = append(placeholders, "$1")
		args = append(args, p.ID)

		for i, c := range cols {
			names = append(names, c.name)
			placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name))
			args = append(args, c.value(p))
		}

		q := fmt.Sprintf(
			`INSERT INTO profiles (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
			strings.Join(names, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(updates, ", "),
		)

		_, err := r.db.Exec(ctx, q, args...)
		if err == nil {
			return r.FetchByUserID(ctx, p.ID)
		}

		switch {
		case isUndefinedColumn(err):
			lastErr = err
			r.logger.Warn("profile upsert hit unknown column, adapting",
				zap.Int("attempt", attempt),
			)
			r.adapt(ctx, "upsert")
		case isUniqueViolation(err, "username"):
			return nil, ErrHandleTaken
		case isPermissionDenied(err):
			return nil, ErrPermissionDenied
		default:
			return nil, fmt.Errorf("upsert profile: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

// UpdateAvatarURL writes only the avatar URL. Used by the upload flow
// so a finished upload never clobbers in-progress form edits.
func (r *Repository) UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET avatar_url = $2, updated_at = $3 WHERE id = $1`,
		id, url, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFaceDescriptor writes only the enrollment descriptor. Kept
// separate from Upsert so enrolling can never overwrite other fields
// with stale form state. A nil descriptor clears the enrollment.
func (r *Repository) UpdateFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET face_descriptor = $2, updated_at = $3 WHERE id = $1`,
		id, descriptor, time.Now().UTC(),
	)
	if err != nil {
		if isUndefinedColumn(err) {
			return fmt.Errorf("face enrollment unavailable: schema has no face_descriptor column")
		}
		return fmt.Errorf("update face descriptor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the profile row. Deleting an absent row is not an
// error: account deletion must be idempotent.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ── Postgres error classification ─────────────────────────────────────────

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42703"
}

func isUniqueViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return strings.Contains(pgErr.ConstraintName, column)
}

func isPermissionDenied(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42501" || pgErr.Code == "28000"
}
