// Package draft is the write-through cache for in-progress profile
// edits. Every field-level change lands here before any remote save, so
// a failed network call, crash, or reload never loses more than the
// most recent keystroke.
//
// The cache is best-effort and never a system of record: every storage
// error is swallowed (and logged); its unavailability must not block
// editing or saving.
package draft

import "context"

// Kind names a save context. Creation-flow and edit-flow drafts are
// independent slots; a pending referral marker uses a third kind.
type Kind string

const (
	// KindCreate holds the draft for a first-time creation flow,
	// keyed by an anonymous save-context token.
	KindCreate Kind = "create"
	// KindEdit holds the draft for post-publish edits, keyed by the
	// owning account ID.
	KindEdit Kind = "edit"
	// KindReferral holds the pending-referral marker, keyed by the
	// referred account ID.
	KindReferral Kind = "referral"
)

// Slot identifies one cache entry: a save context plus its key.
type Slot struct {
	Kind Kind
	Key  string
}

func (s Slot) storageKey() string {
	return string(s.Kind) + ":" + s.Key
}

// Cache stores one JSON-serializable value per slot. Save overwrites,
// Load reports whether a value was present, Clear removes. None of the
// methods return errors: failures are absorbed by the implementation.
type Cache interface {
	Save(ctx context.Context, slot Slot, v any)
	Load(ctx context.Context, slot Slot, dst any) bool
	Clear(ctx context.Context, slot Slot)
}
