package ann

import "testing"

func TestSignatureDeterministic(t *testing.T) {
	vec := []float32{0.1, -0.2, 0.3, 0.4, -0.5}
	a := Signature(vec, 16, 42)
	b := Signature(vec, 16, 42)
	if a != b {
		t.Fatalf("signature not deterministic: %d != %d", a, b)
	}
}

func TestSignatureClampsBits(t *testing.T) {
	vec := []float32{1, 2, 3}
	if Signature(vec, 0, 1) != Signature(vec, 1, 1) {
		t.Fatalf("bits=0 should clamp to 1")
	}
	// values above 63 should clamp, not panic via overflow shift
	_ = Signature(vec, 200, 1)
}

func TestNeighborSignatures(t *testing.T) {
	sig := Signature([]float32{1, -1, 1}, 8, 7)
	neighbors := NeighborSignatures(sig, 8)
	if len(neighbors) != 9 {
		t.Fatalf("expected bits+1 = 9 entries, got %d", len(neighbors))
	}
	if neighbors[0] != sig {
		t.Fatalf("first neighbor must be the input signature")
	}
	for b := uint8(0); b < 8; b++ {
		want := sig ^ (1 << b)
		if neighbors[b+1] != want {
			t.Fatalf("neighbor %d = %d, want %d", b, neighbors[b+1], want)
		}
	}
}

func TestNeighborSignaturesAreHamming1(t *testing.T) {
	sig := uint64(0)
	neighbors := NeighborSignatures(sig, 4)
	for _, n := range neighbors[1:] {
		diff := sig ^ n
		count := 0
		for diff != 0 {
			count += int(diff & 1)
			diff >>= 1
		}
		if count != 1 {
			t.Fatalf("neighbor %d differs from sig by %d bits, want 1", n, count)
		}
	}
}
