package cursor

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	c := Encode(at, "msg_abc123")

	gotAt, gotID, err := Decode(c)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !gotAt.Equal(at) {
		t.Errorf("expected %v, got %v", at, gotAt)
	}
	if gotID != "msg_abc123" {
		t.Errorf("expected msg_abc123, got %s", gotID)
	}
}

func TestRoundTrip_MicrosecondPrecision(t *testing.T) {
	// Timestamps 250µs apart must decode to distinct instants; losing
	// sub-millisecond detail would make keyset pagination skip rows.
	a := time.Date(2025, 6, 1, 12, 30, 0, 123250000, time.UTC)
	b := a.Add(250 * time.Microsecond)

	gotA, _, err := Decode(Encode(a, "msg_a"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	gotB, _, err := Decode(Encode(b, "msg_b"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !gotA.Equal(a) || !gotB.Equal(b) {
		t.Errorf("timestamps not preserved: %v / %v", gotA, gotB)
	}
	if gotA.Equal(gotB) {
		t.Error("sub-millisecond timestamps collapsed to one instant")
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, c := range []string{"", "not-base64!!", "bm9waXBl", Encode(time.Now(), "")} {
		if _, _, err := Decode(c); err == nil {
			t.Errorf("expected error for cursor %q", c)
		}
	}
}
