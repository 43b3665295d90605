package classfile

import "testing"

func TestParseMinimalClass(t *testing.T) {
	b := newClassBuilder()
	// return
	code := []byte{0xB1} // return
	buf := b.build("Hello", "java/lang/Object", []simpleMethod{
		{accessFlags: AccPublic | AccStatic, name: "main", desc: "([Ljava/lang/String;)V", maxStack: 0, maxLocals: 1, code: code},
	})

	cf, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.MajorVersion != 52 {
		t.Errorf("MajorVersion = %d, want 52", cf.MajorVersion)
	}

	name, err := cf.ThisClassName()
	if err != nil {
		t.Fatalf("ThisClassName: %v", err)
	}
	if name != "Hello" {
		t.Errorf("ThisClassName = %q, want %q", name, "Hello")
	}

	super, err := cf.SuperClassName()
	if err != nil {
		t.Fatalf("SuperClassName: %v", err)
	}
	if super != "java/lang/Object" {
		t.Errorf("SuperClassName = %q, want %q", super, "java/lang/Object")
	}

	m := cf.FindMethod("main", "([Ljava/lang/String;)V")
	if m == nil {
		t.Fatal("main method not found")
	}
	if m.Code == nil {
		t.Fatal("main method has no Code attribute")
	}
	if len(m.Code.Code) != 1 || m.Code.Code[0] != 0xB1 {
		t.Errorf("Code bytes = %v, want [0xB1]", m.Code.Code)
	}
	if m.Code.MaxLocals != 1 {
		t.Errorf("MaxLocals = %d, want 1", m.Code.MaxLocals)
	}
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse([]byte{0xCA, 0xFE, 0xBA})
	if err == nil {
		t.Fatal("expected error for truncated buffer, got nil")
	}
}

func TestLongDoubleOccupyTwoSlots(t *testing.T) {
	b := newClassBuilder()
	longEntry := []byte{TagLong, 0, 0, 0, 0, 0, 0, 0, 42}
	b.pool = append(b.pool, longEntry)
	longIdx := uint16(len(b.pool) - 1)
	b.pool = append(b.pool, nil) // the blank slot the decoder must also emit

	buf := b.build("WithLong", "java/lang/Object", nil)
	cf, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if int(longIdx) >= len(cf.ConstantPool) {
		t.Fatalf("pool too short: want index %d, len %d", longIdx, len(cf.ConstantPool))
	}
	if _, ok := cf.ConstantPool[longIdx].(Long); !ok {
		t.Errorf("pool[%d] = %#v, want Long", longIdx, cf.ConstantPool[longIdx])
	}
	if int(longIdx)+1 < len(cf.ConstantPool) && cf.ConstantPool[longIdx+1] != nil {
		t.Errorf("pool[%d] (second Long slot) = %#v, want nil", longIdx+1, cf.ConstantPool[longIdx+1])
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	cases := []string{"hello", "", "café", "snowman ☃", "\U0001F600"}
	for _, s := range cases {
		enc := encodeModifiedUTF8(s)
		dec, err := decodeModifiedUTF8(enc)
		if err != nil {
			t.Fatalf("decodeModifiedUTF8(%q): %v", s, err)
		}
		if dec != s {
			t.Errorf("round trip %q -> %x -> %q", s, enc, dec)
		}
	}
}

func TestModifiedUTF8NullByte(t *testing.T) {
	enc := encodeModifiedUTF8("a\x00b")
	want := []byte{'a', 0xC0, 0x80, 'b'}
	if string(enc) != string(want) {
		t.Errorf("encodeModifiedUTF8(%q) = %x, want %x", "a\x00b", enc, want)
	}
}
