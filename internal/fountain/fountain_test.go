package fountain

import "testing"

func TestGeneratorDeterministic(t *testing.T) {
	g1 := NewGenerator(SliceSeed)
	g2 := NewGenerator(SliceSeed)
	for i := 0; i < 1000; i++ {
		a, b := g1.Uint64(), g2.Uint64()
		if a != b {
			t.Fatalf("generators diverged at step %d: %d != %d", i, a, b)
		}
	}
}

func TestGeneratorDifferentSeeds(t *testing.T) {
	g1 := NewGenerator(1)
	g2 := NewGenerator(2)
	same := 0
	for i := 0; i < 100; i++ {
		if g1.Uint64() == g2.Uint64() {
			same++
		}
	}
	if same > 1 {
		t.Fatalf("expected near-zero collisions between independent seeds, got %d/100", same)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	g := NewGenerator(SliceSeed)
	a := make([]uint32, 500)
	for i := range a {
		a[i] = uint32(i)
	}
	Shuffle(g, a)
	seen := make(map[uint32]bool, len(a))
	for _, v := range a {
		if seen[v] {
			t.Fatalf("value %d repeated after shuffle", v)
		}
		seen[v] = true
	}
	if len(seen) != len(a) {
		t.Fatalf("shuffle dropped elements: got %d distinct of %d", len(seen), len(a))
	}
}

func TestIndexedShuffleInverse(t *testing.T) {
	const n = 733
	g := NewGenerator(SliceSeed)
	index := make([]uint32, n)
	lookup := make([]uint32, n)
	IndexedShuffle(g, index, lookup)

	for slot, orig := range index {
		if lookup[orig] != uint32(slot) {
			t.Fatalf("lookup is not the inverse of index at orig=%d: index[%d]=%d but lookup[%d]=%d, want %d",
				orig, slot, orig, orig, lookup[orig], slot)
		}
	}
}

func TestIndexedShuffleDeterministic(t *testing.T) {
	const n = 211
	g1 := NewGenerator(SliceSeed)
	g2 := NewGenerator(SliceSeed)
	idx1, look1 := make([]uint32, n), make([]uint32, n)
	idx2, look2 := make([]uint32, n), make([]uint32, n)
	IndexedShuffle(g1, idx1, look1)
	IndexedShuffle(g2, idx2, look2)
	for i := range idx1 {
		if idx1[i] != idx2[i] || look1[i] != look2[i] {
			t.Fatalf("indexed shuffle not deterministic at %d", i)
		}
	}
}
