package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func decodeID(t *testing.T, value string) uuid.UUID {
	t.Helper()

	raw, err := encoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		t.Fatalf("decode %q: %v", value, err)
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		t.Fatalf("uuid from %q: %v", value, err)
	}
	return u
}

func TestNewIDIsLowercaseBase32UUID(t *testing.T) {
	value, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(value) != 26 {
		t.Fatalf("len = %d, want 26", len(value))
	}
	if strings.ContainsAny(value, "=ABCDEFGHIJKLMNOPQRSTUVWXYZ01890") {
		t.Fatalf("id %q has characters outside lowercase base32", value)
	}

	u := decodeID(t, value)
	if u.Version() != 4 {
		t.Fatalf("version = %d, want 4", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("variant = %v, want RFC4122", u.Variant())
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool, 500)
	for range 500 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if seen[value] {
			t.Fatalf("duplicate id %q", value)
		}
		seen[value] = true
	}
}
