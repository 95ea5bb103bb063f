package internal

import "testing"

func TestTokenDigest(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := TokenDigest("abc"); got != want {
		t.Fatalf("TokenDigest(abc) = %s", got)
	}
	if !DigestEqual(want, TokenDigest("abc")) {
		t.Fatal("expected equal digests")
	}
	if DigestEqual(want, TokenDigest("abd")) {
		t.Fatal("expected different digests")
	}
	if DigestEqual(want, want[:10]) {
		t.Fatal("expected length mismatch to compare unequal")
	}
}
