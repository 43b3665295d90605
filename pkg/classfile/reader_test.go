package classfile

import "testing"

func TestReaderPrimitives(t *testing.T) {
	buf := []byte{0xFF, 0x01, 0x02, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	r := NewReader(buf)

	u8, err := r.U8()
	if err != nil || u8 != 0xFF {
		t.Fatalf("U8 = %v, %v", u8, err)
	}
	u16, err := r.U16()
	if err != nil || u16 != 0x0102 {
		t.Fatalf("U16 = %v, %v", u16, err)
	}
	u32, err := r.U32()
	if err != nil || u32 != 0x00000100 {
		t.Fatalf("U32 = %v, %v", u32, err)
	}
	u64, err := r.U64()
	if err != nil || u64 != 0x0000000000000001 {
		t.Fatalf("U64 = %v, %v", u64, err)
	}
}

func TestReaderOutOfRange(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.U32(); err == nil {
		t.Fatal("expected error reading past end, got nil")
	}
}

func TestReaderSkipPadding(t *testing.T) {
	buf := make([]byte, 16)
	r := NewReader(buf)
	if _, err := r.Bytes(3); err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	r.SkipPadding()
	if r.Pos()%4 != 0 {
		t.Errorf("Pos() = %d, want multiple of 4", r.Pos())
	}
	if r.Pos() != 4 {
		t.Errorf("Pos() = %d, want 4", r.Pos())
	}
}

func TestReaderSkipPaddingAlreadyAligned(t *testing.T) {
	r := NewReader(make([]byte, 16))
	if _, err := r.Bytes(4); err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	r.SkipPadding()
	if r.Pos() != 4 {
		t.Errorf("Pos() = %d, want 4 (no-op when already aligned)", r.Pos())
	}
}

func TestReaderI32Vector(t *testing.T) {
	buf := []byte{0, 0, 0, 1, 0, 0, 0, 2, 0xFF, 0xFF, 0xFF, 0xFF}
	r := NewReader(buf)
	got, err := r.I32Vector(3)
	if err != nil {
		t.Fatalf("I32Vector: %v", err)
	}
	want := []int32{1, 2, -1}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("got[%d] = %d, want %d", i, got[i], w)
		}
	}
}
