package addr

import "testing"

func TestCanonicalizeVirtualIdempotent(t *testing.T) {
	inputs := []uintptr{0, 0x1000, 0xffff800000000000, 0x7fffffffffff, 0xffffffffffffffff}
	for _, in := range inputs {
		c1 := canonicalizeVirtual(in)
		c2 := canonicalizeVirtual(c1)
		if c1 != c2 {
			t.Errorf("canonicalize(canonicalize(0x%x)) = 0x%x, want 0x%x", in, c2, c1)
		}
		if isCanonicalVirtual(in) != (canonicalizeVirtual(in) == in) {
			t.Errorf("isCanonical(0x%x) disagrees with canonicalize fixpoint", in)
		}
	}
}

func TestNewVirtualRejectsNonCanonical(t *testing.T) {
	if _, err := NewVirtual(0x0000800000000000); err == nil {
		t.Fatal("expected non-canonical address to be rejected")
	}
	if _, err := NewVirtual(0xffff800000000000); err != nil {
		t.Fatalf("unexpected error for canonical address: %v", err)
	}
}

func TestCanonicalPhysicalMasksHighBits(t *testing.T) {
	got := NewCanonicalPhysical(0xfff0000000000000 | 0x1000)
	if got.Value() != 0x1000 {
		t.Fatalf("expected high bits cleared, got 0x%x", got.Value())
	}
}
