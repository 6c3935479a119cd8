package block

import "testing"

func TestByteTableInterning(t *testing.T) {
	bt := newByteTable()
	i1 := bt.intern([]byte("alpha"))
	i2 := bt.intern([]byte("beta"))
	i3 := bt.intern([]byte("alpha"))
	if i1 != i3 {
		t.Fatalf("repeated insertion got different index: %d vs %d", i1, i3)
	}
	if i1 == i2 {
		t.Fatalf("distinct values collided: %d", i1)
	}
	if i1 != 1 || i2 != 2 {
		t.Fatalf("expected 1-based insertion-order indices, got %d, %d", i1, i2)
	}
	if bt.len() != 2 {
		t.Fatalf("len() = %d, want 2", bt.len())
	}
}

func TestGenTableUnsetFieldsCompareEqual(t *testing.T) {
	gt := newGenTable[SignatureKey]()
	a := SignatureKey{} // every field unset
	b := SignatureKey{} // also every field unset
	ia := gt.intern(a)
	ib := gt.intern(b)
	if ia != ib {
		t.Fatalf("two all-unset signatures got different indices: %d vs %d", ia, ib)
	}

	c := SignatureKey{HasServerPort: true, ServerPort: 53}
	ic := gt.intern(c)
	if ic == ia {
		t.Fatalf("distinct signature collided with unset signature")
	}
	if gt.intern(c) != ic {
		t.Fatalf("repeated insertion of same signature changed index")
	}
}

func TestEncodeDecodeIndexList(t *testing.T) {
	in := []int{1, 2, 300, 4}
	encoded := encodeIndexList(in)
	out := decodeIndexList(encoded)
	if len(out) != len(in) {
		t.Fatalf("decoded length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestIndexListOrderMatters(t *testing.T) {
	a := encodeIndexList([]int{1, 2, 3})
	b := encodeIndexList([]int{3, 2, 1})
	if a == b {
		t.Fatal("differently-ordered index lists produced the same key")
	}
}
