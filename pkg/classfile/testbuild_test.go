package classfile

import "encoding/binary"

// classBuilder assembles a minimal, valid class-file byte stream by hand so
// tests do not depend on checked-in .class binaries (none are available in
// this environment). It mirrors just enough of the format to exercise the
// decoder end to end.
type classBuilder struct {
	buf  []byte
	pool [][]byte // pool[0] unused; each entry already includes its tag byte
}

func newClassBuilder() *classBuilder {
	return &classBuilder{pool: [][]byte{nil}}
}

func (b *classBuilder) addUtf8(s string) uint16 {
	enc := encodeModifiedUTF8(s)
	entry := make([]byte, 0, 3+len(enc))
	entry = append(entry, TagUtf8)
	entry = appendU16(entry, uint16(len(enc)))
	entry = append(entry, enc...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addClass(name string) uint16 {
	nameIdx := b.addUtf8(name)
	entry := []byte{TagClass}
	entry = appendU16(entry, nameIdx)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addNameAndType(name, desc string) uint16 {
	n := b.addUtf8(name)
	d := b.addUtf8(desc)
	entry := []byte{TagNameAndType}
	entry = appendU16(entry, n)
	entry = appendU16(entry, d)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addMethodref(className, name, desc string) uint16 {
	c := b.addClass(className)
	nat := b.addNameAndType(name, desc)
	entry := []byte{TagMethodref}
	entry = appendU16(entry, c)
	entry = appendU16(entry, nat)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendU32(b []byte, v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return append(b, out...)
}

// simpleMethod describes a method to embed with a trivial Code attribute.
type simpleMethod struct {
	accessFlags uint16
	name        string
	desc        string
	maxStack    uint16
	maxLocals   uint16
	code        []byte
}

// build assembles a full class-file byte stream for a class named
// className extending superName, with the given methods. The "Code"
// attribute name is added to the pool up front (codeNameIdx), since it
// must itself be a Utf8 pool entry.
func (b *classBuilder) build(className, superName string, methods []simpleMethod) []byte {
	thisIdx := b.addClass(className)
	superIdx := uint16(0)
	if superName != "" {
		superIdx = b.addClass(superName)
	}
	codeNameIdx := b.addUtf8("Code")

	var methodBytes [][]byte
	for _, m := range methods {
		nameIdx := b.addUtf8(m.name)
		descIdx := b.addUtf8(m.desc)

		codeAttr := make([]byte, 0, 12+len(m.code))
		codeAttr = appendU16(codeAttr, m.maxStack)
		codeAttr = appendU16(codeAttr, m.maxLocals)
		codeAttr = appendU32(codeAttr, uint32(len(m.code)))
		codeAttr = append(codeAttr, m.code...)
		codeAttr = appendU16(codeAttr, 0) // exception_table_length
		codeAttr = appendU16(codeAttr, 0) // attributes_count (nested)

		mb := make([]byte, 0, 16+len(codeAttr))
		mb = appendU16(mb, m.accessFlags)
		mb = appendU16(mb, nameIdx)
		mb = appendU16(mb, descIdx)
		mb = appendU16(mb, 1) // attributes_count
		mb = appendU16(mb, codeNameIdx)
		mb = appendU32(mb, uint32(len(codeAttr)))
		mb = append(mb, codeAttr...)
		methodBytes = append(methodBytes, mb)
	}

	out := make([]byte, 0, 1024)
	out = appendU32(out, Magic)
	out = appendU16(out, 0)  // minor
	out = appendU16(out, 52) // major

	out = appendU16(out, uint16(len(b.pool))) // constant_pool_count
	for i := 1; i < len(b.pool); i++ {
		out = append(out, b.pool[i]...)
	}

	out = appendU16(out, AccSuper|AccPublic) // access_flags
	out = appendU16(out, thisIdx)
	out = appendU16(out, superIdx)
	out = appendU16(out, 0) // interfaces_count
	out = appendU16(out, 0) // fields_count
	out = appendU16(out, uint16(len(methods)))
	for _, mb := range methodBytes {
		out = append(out, mb...)
	}
	out = appendU16(out, 0) // attributes_count
	return out
}
