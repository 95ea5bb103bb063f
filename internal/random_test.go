package internal

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestNewTokenIDIsUnique128BitHex(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		id, err := NewTokenID()
		if err != nil {
			t.Fatalf("NewTokenID: %v", err)
		}
		raw, err := hex.DecodeString(id)
		if err != nil || len(raw) != TokenIDBytes {
			t.Fatalf("unexpected token id %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate token id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestRandomDurationBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d, err := RandomDuration(20*time.Millisecond, 40*time.Millisecond)
		if err != nil {
			t.Fatalf("RandomDuration: %v", err)
		}
		if d < 20*time.Millisecond || d > 40*time.Millisecond {
			t.Fatalf("duration %v out of range", d)
		}
	}
	if d, err := RandomDuration(5*time.Millisecond, 5*time.Millisecond); err != nil || d != 5*time.Millisecond {
		t.Fatalf("expected fixed duration, got %v %v", d, err)
	}
	if _, err := RandomDuration(time.Second, time.Millisecond); err == nil {
		t.Fatal("expected inverted range to fail")
	}
}
