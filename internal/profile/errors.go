package profile

import "errors"

// ErrNotFound is returned by fetches when no profile row exists. It is
// not a failure: callers route it to the profile-creation flow, and
// must never conflate it with a transient fetch error.
var ErrNotFound = errors.New("profile not found")

// ErrHandleRequired is returned when a save is attempted without a
// non-empty handle.
var ErrHandleRequired = errors.New("handle is required")

// ErrHandleInvalid wraps handle syntax violations so callers can map
// them without matching message text.
var ErrHandleInvalid = errors.New("invalid handle")

// ErrHandleTaken is returned when the requested handle is already
// claimed by another profile. User-correctable.
var ErrHandleTaken = errors.New("handle already taken")

// ErrPermissionDenied is returned when the store's policy layer rejects
// the write. The session should be re-established.
var ErrPermissionDenied = errors.New("not authorized to write this profile")

// ErrRetryExhausted is returned when the schema-adaptive retry ladder
// gives up without a successful write or read.
var ErrRetryExhausted = errors.New("save failed after schema retries")

// ErrSessionMismatch is returned when the acting session does not match
// the profile being saved (stale tab protection).
var ErrSessionMismatch = errors.New("session does not match profile owner")

// ErrSaveTimeout is returned when the remote write exceeded its
// deadline. The draft survives; the save can be retried.
var ErrSaveTimeout = errors.New("profile save timed out")
