package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestResolve_DIDPassesThroughVerbatim(t *testing.T) {
	svc, _ := newTestService(t)

	// DID-form input resolves without any user row behind it.
	did, err := svc.Resolve(context.Background(), "did:bw:unregistered")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if did != "did:bw:unregistered" {
		t.Errorf("did = %q, want passthrough", did)
	}
}

func TestResolve_AliasRegistry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := store.SaveAlias(ctx, "kagiso", "did:bw:kagiso"); err != nil {
		t.Fatalf("SaveAlias: %v", err)
	}

	did, err := svc.Resolve(ctx, "kagiso")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if did != "did:bw:kagiso" {
		t.Errorf("did = %q", did)
	}
}

func TestResolve_PhoneFallback(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// A user row without an alias binding is still reachable by phone number.
	err := store.Create(ctx, &User{
		DID:         "did:bw:naledi",
		PhoneNumber: "26773000003",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	did, err := svc.Resolve(ctx, "26773000003")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if did != "did:bw:naledi" {
		t.Errorf("did = %q", did)
	}
}

func TestResolve_UnknownAlias(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), "26779999999")
	if err != ErrAliasNotFound {
		t.Fatalf("err = %v, want ErrAliasNotFound", err)
	}
}

func TestRegister_BindsPhoneAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Register(ctx, &User{
		DID:         "did:bw:tumelo",
		PhoneNumber: "26774000004",
		Name:        "Tumelo",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	did, err := svc.Resolve(ctx, "26774000004")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if did != "did:bw:tumelo" {
		t.Errorf("did = %q", did)
	}
}

func TestRegister_DuplicateDID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u := &User{DID: "did:bw:dup", PhoneNumber: "26775000005", CreatedAt: time.Now()}
	if err := svc.Register(ctx, u); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := svc.Register(ctx, u); err != ErrUserExists {
		t.Errorf("err = %v, want ErrUserExists", err)
	}
}

func TestBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	err := store.Create(ctx, &User{DID: "did:bw:lesego", PhoneNumber: "26776000006", Balance: 125.5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	balance, err := svc.Balance(ctx, "did:bw:lesego")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 125.5 {
		t.Errorf("balance = %v, want 125.5", balance)
	}

	if _, err := svc.Balance(ctx, "did:bw:nobody"); err != ErrUserNotFound {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestIsDID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"did:bw:abc-123", true},
		{"26771000001", false},
		{"kagiso", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsDID(tt.in); got != tt.want {
			t.Errorf("IsDID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
