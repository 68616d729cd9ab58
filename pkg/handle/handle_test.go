package handle_test

import (
	"testing"

	"github.com/tapfolio/tapfolio/pkg/handle"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Alice ":  "alice",
		"DJ-Rae":    "dj-rae",
		"bob_99":    "bob_99",
		"\tCarol\n": "carol",
	}
	for in, want := range cases {
		if got := handle.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate_accepts(t *testing.T) {
	for _, h := range []string{"alice", "dj-rae", "bob_99", "a1c", "x0-"} {
		if err := handle.Validate(h); err != nil {
			t.Errorf("Validate(%q): unexpected error %v", h, err)
		}
	}
}

func TestValidate_rejects(t *testing.T) {
	cases := []string{
		"",              // empty
		"ab",            // too short
		"-alice",        // leading separator
		"_alice",        // leading separator
		"Alice",         // not normalized
		"al ice",        // whitespace
		"séb",           // non-ascii
		"api",           // reserved route
		"me",            // reserved route
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 33 chars
	}
	for _, h := range cases {
		if err := handle.Validate(h); err == nil {
			t.Errorf("Validate(%q): expected error, got nil", h)
		}
	}
}

func TestEqual_caseInsensitive(t *testing.T) {
	if !handle.Equal("Alice", "alice") {
		t.Error("expected Alice == alice")
	}
	if handle.Equal("alice", "alicia") {
		t.Error("expected alice != alicia")
	}
}

func TestPublicURL(t *testing.T) {
	got := handle.PublicURL("https://tapfolio.app/", "Alice")
	if got != "https://tapfolio.app/alice" {
		t.Errorf("PublicURL = %q", got)
	}
}
