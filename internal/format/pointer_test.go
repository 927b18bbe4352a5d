package format

import "testing"

func TestStructPointerFields(t *testing.T) {
	w := EncodeStruct(-3, 2, 5)
	if Kind(w) != PointerStruct {
		t.Fatalf("Kind = %d, want struct", Kind(w))
	}
	if got := Offset(w); got != -3 {
		t.Fatalf("Offset = %d, want -3", got)
	}
	if got := StructDataWords(w); got != 2 {
		t.Fatalf("StructDataWords = %d, want 2", got)
	}
	if got := StructPointerCount(w); got != 5 {
		t.Fatalf("StructPointerCount = %d, want 5", got)
	}
}

func TestListPointerFields(t *testing.T) {
	w := EncodeList(7, ElementComposite, MaxListCount)
	if Kind(w) != PointerList {
		t.Fatalf("Kind = %d, want list", Kind(w))
	}
	if got := Offset(w); got != 7 {
		t.Fatalf("Offset = %d, want 7", got)
	}
	if got := ListElementSize(w); got != ElementComposite {
		t.Fatalf("ListElementSize = %d, want composite", got)
	}
	if got := ListCount(w); got != MaxListCount {
		t.Fatalf("ListCount = %d, want %d", got, MaxListCount)
	}
}

func TestFarPointerFields(t *testing.T) {
	w := EncodeFar(true, MaxFarOffsetWords, 0xDEADBEEF)
	if Kind(w) != PointerFar {
		t.Fatalf("Kind = %d, want far", Kind(w))
	}
	if !IsDoubleFar(w) {
		t.Fatalf("expected double-far bit")
	}
	if got := FarOffset(w); got != MaxFarOffsetWords {
		t.Fatalf("FarOffset = %d, want %d", got, MaxFarOffsetWords)
	}
	if got := FarSegment(w); got != 0xDEADBEEF {
		t.Fatalf("FarSegment = 0x%x", got)
	}
	if IsDoubleFar(EncodeFar(false, 1, 1)) {
		t.Fatalf("single far reported as double")
	}
}

func TestOtherPointerFields(t *testing.T) {
	w := EncodeOther(42)
	if Kind(w) != PointerOther || CapabilityID(w) != 42 {
		t.Fatalf("unexpected capability pointer 0x%x", w)
	}
	if uint32(w) != PointerOther {
		t.Fatalf("low half of capability pointer must only carry the kind, got 0x%x", uint32(w))
	}
}

func TestWithOffsetKeepsUpperHalf(t *testing.T) {
	w := EncodeList(100, ElementByte, 9)
	moved := WithOffset(w, MinOffsetWords)
	if Offset(moved) != MinOffsetWords {
		t.Fatalf("Offset = %d, want %d", Offset(moved), MinOffsetWords)
	}
	if ListElementSize(moved) != ElementByte || ListCount(moved) != 9 || Kind(moved) != PointerList {
		t.Fatalf("WithOffset changed upper half: 0x%x", moved)
	}
}

func TestAlignHelpers(t *testing.T) {
	cases := []struct{ in, want int }{{0, 0}, {1, 8}, {8, 8}, {9, 16}, {16, 16}}
	for _, c := range cases {
		if got := PadToWord(c.in); got != c.want {
			t.Fatalf("PadToWord(%d) = %d, want %d", c.in, got, c.want)
		}
	}
	if FrameHeaderSize(1) != 8 || FrameHeaderSize(2) != 16 || FrameHeaderSize(3) != 16 || FrameHeaderSize(4) != 24 {
		t.Fatalf("unexpected frame header sizes")
	}
	if ElementByteLength(ElementBit) != -1 || ElementByteLength(ElementPointer) != 8 {
		t.Fatalf("unexpected element widths")
	}
	if ElementBitLength(ElementBit) != 1 || ElementBitLength(ElementFourBytes) != 32 {
		t.Fatalf("unexpected element bit widths")
	}
}
