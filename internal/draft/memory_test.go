package draft_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/tapfolio/tapfolio/internal/draft"
)

type formState struct {
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	Bio         string            `json:"bio"`
	Channels    map[string]string `json:"channels"`
	Flags       map[string]bool   `json:"flags"`
}

func sampleState() *formState {
	return &formState{
		Username:    "alice",
		DisplayName: "Alice",
		Bio:         "hello",
		Channels:    map[string]string{"phone": "+15550100", "website": "https://a.example"},
		Flags:       map[string]bool{"phone": true, "website": false},
	}
}

func TestMemoryCache_saveLoadRoundTrip(t *testing.T) {
	c := draft.NewMemoryCache(0)
	ctx := context.Background()
	slot := draft.Slot{Kind: draft.KindEdit, Key: "user-1"}

	in := sampleState()
	c.Save(ctx, slot, in)

	var out formState
	if !c.Load(ctx, slot, &out) {
		t.Fatal("expected Load to find the saved draft")
	}
	if !reflect.DeepEqual(in, &out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestMemoryCache_clear(t *testing.T) {
	c := draft.NewMemoryCache(0)
	ctx := context.Background()
	slot := draft.Slot{Kind: draft.KindCreate, Key: "ctx-token"}

	c.Save(ctx, slot, sampleState())
	c.Clear(ctx, slot)

	var out formState
	if c.Load(ctx, slot, &out) {
		t.Error("expected Load to find nothing after Clear")
	}
}

func TestMemoryCache_slotsAreIndependent(t *testing.T) {
	c := draft.NewMemoryCache(0)
	ctx := context.Background()

	create := draft.Slot{Kind: draft.KindCreate, Key: "k"}
	edit := draft.Slot{Kind: draft.KindEdit, Key: "k"}

	in := sampleState()
	c.Save(ctx, create, in)

	var out formState
	if c.Load(ctx, edit, &out) {
		t.Error("edit slot must not see the creation-flow draft")
	}
	if !c.Load(ctx, create, &out) {
		t.Error("creation slot lost its draft")
	}
}

func TestMemoryCache_saveOverwrites(t *testing.T) {
	c := draft.NewMemoryCache(0)
	ctx := context.Background()
	slot := draft.Slot{Kind: draft.KindEdit, Key: "user-1"}

	first := sampleState()
	c.Save(ctx, slot, first)

	second := sampleState()
	second.Bio = "updated"
	c.Save(ctx, slot, second)

	var out formState
	if !c.Load(ctx, slot, &out) {
		t.Fatal("expected a draft")
	}
	if out.Bio != "updated" {
		t.Errorf("expected last write to win, got bio %q", out.Bio)
	}
}

func TestMemoryCache_expiry(t *testing.T) {
	c := draft.NewMemoryCache(time.Millisecond)
	ctx := context.Background()
	slot := draft.Slot{Kind: draft.KindEdit, Key: "user-1"}

	c.Save(ctx, slot, sampleState())
	time.Sleep(5 * time.Millisecond)

	var out formState
	if c.Load(ctx, slot, &out) {
		t.Error("expected the draft to have expired")
	}
}
