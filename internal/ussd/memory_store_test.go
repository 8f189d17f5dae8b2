package ussd

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); err != ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	sess := &Session{
		SessionID:         "sess-1",
		PhoneNumber:       "26771000001",
		CurrentMenu:       MenuSendAmount,
		TempData:          map[string]string{"recipient": "26772000002"},
		InitiatedAt:       now,
		LastInteractionAt: now,
		Active:            true,
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentMenu != MenuSendAmount {
		t.Errorf("menu = %s", got.CurrentMenu)
	}
	if got.TempData["recipient"] != "26772000002" {
		t.Errorf("recipient = %q", got.TempData["recipient"])
	}
}

func TestMemoryStore_CopiesTempData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &Session{
		SessionID:   "sess-2",
		CurrentMenu: MenuMain,
		TempData:    map[string]string{"recipient": "original"},
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Mutating the caller's map after the write must not leak into the store,
	// and mutating a read copy must not leak back.
	sess.TempData["recipient"] = "mutated"

	got, err := store.Get(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TempData["recipient"] != "original" {
		t.Errorf("stored value = %q, caller mutation leaked in", got.TempData["recipient"])
	}

	got.TempData["recipient"] = "changed-on-copy"
	again, _ := store.Get(ctx, "sess-2")
	if again.TempData["recipient"] != "original" {
		t.Errorf("stored value = %q, read-copy mutation leaked back", again.TempData["recipient"])
	}
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &Session{SessionID: "sess-3", CurrentMenu: MenuMain, TempData: map[string]string{}, Active: true}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	second := &Session{SessionID: "sess-3", CurrentMenu: MenuSendRecipient, TempData: map[string]string{}, Active: false}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Get(ctx, "sess-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentMenu != MenuSendRecipient || got.Active {
		t.Errorf("got %+v, want overwritten session", got)
	}
}
