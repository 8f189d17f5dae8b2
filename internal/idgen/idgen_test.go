package idgen

import (
	"strings"
	"testing"
)

func TestNew_FormatAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 36 {
			t.Fatalf("id %q has length %d, want 36", id, len(id))
		}
		parts := strings.Split(id, "-")
		if len(parts) != 5 {
			t.Fatalf("id %q has %d segments, want 5", id, len(parts))
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("txn_")
	if !strings.HasPrefix(id, "txn_") {
		t.Errorf("id %q missing prefix", id)
	}
	if len(id) != len("txn_")+24 {
		t.Errorf("id %q has length %d, want prefix+24", id, len(id))
	}
}

func TestDID_Namespace(t *testing.T) {
	did := DID()
	if !strings.HasPrefix(did, "did:bw:") {
		t.Errorf("did %q missing did:bw: prefix", did)
	}
	if DID() == did {
		t.Error("two generated DIDs collided")
	}
}
