// Package handle provides normalization and validation for profile
// handles, and builds the public profile URL that a QR code encodes.
//
// A handle is the user-chosen public identifier for a profile:
//
//	tapfolio.app/alice
//	tapfolio.app/dj-rae
//
// Handles are compared case-insensitively; the canonical stored form is
// the lowercase one produced by Normalize.
package handle

import (
	"fmt"
	"strings"
)

const (
	// MinLen and MaxLen bound the length of a valid handle.
	MinLen = 3
	MaxLen = 32
)

// reserved are path segments that can never be claimed as handles
// because they collide with application routes.
var reserved = map[string]bool{
	"api":      true,
	"admin":    true,
	"me":       true,
	"profile":  true,
	"profiles": true,
	"avatar":   true,
	"login":    true,
	"signup":   true,
	"legal":    true,
	"healthz":  true,
	"readyz":   true,
	"metrics":  true,
}

// Normalize returns the canonical form of a raw handle: trimmed and
// lowercased. It does not validate; call Validate on the result.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate checks a normalized handle against the handle rules:
// 3–32 characters, starting with a letter or digit, containing only
// lowercase letters, digits, '-' and '_', and not a reserved route.
func Validate(h string) error {
	if h == "" {
		return fmt.Errorf("handle is required")
	}
	if len(h) < MinLen {
		return fmt.Errorf("handle %q too short: minimum %d characters", h, MinLen)
	}
	if len(h) > MaxLen {
		return fmt.Errorf("handle %q too long: maximum %d characters", h, MaxLen)
	}
	if reserved[h] {
		return fmt.Errorf("handle %q is reserved", h)
	}
	for i, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
			if i == 0 {
				return fmt.Errorf("handle %q must start with a letter or digit", h)
			}
		default:
			return fmt.Errorf("handle %q contains invalid character %q", h, r)
		}
	}
	return nil
}

// Equal reports whether two raw handles identify the same profile.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// PublicURL returns the public profile URL for a handle under the given
// base URL (e.g. "https://tapfolio.app"). This is the string a QR code
// encodes; rendering the QR image itself is up to the frontend.
func PublicURL(baseURL, h string) string {
	return strings.TrimRight(baseURL, "/") + "/" + Normalize(h)
}
