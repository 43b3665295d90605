package rt

import (
	"github.com/rkoga/tinyjvm/pkg/classfile"
)

// classBuilder assembles a minimal, valid class-file byte stream by hand,
// the same way pkg/classfile's own test-only builder does, but built
// against classfile's exported API since this package cannot reach into
// classfile's unexported modified-UTF-8 encoder. Every name used by these
// tests is plain ASCII, so a raw []byte conversion is a correct substitute
// for modified UTF-8 (no embedded NULs, no supplementary characters).
type classBuilder struct {
	pool [][]byte // pool[0] unused; each entry already includes its tag byte
}

func newClassBuilder() *classBuilder {
	return &classBuilder{pool: [][]byte{nil}}
}

func (b *classBuilder) addUtf8(s string) uint16 {
	entry := make([]byte, 0, 3+len(s))
	entry = append(entry, classfile.TagUtf8)
	entry = appendU16(entry, uint16(len(s)))
	entry = append(entry, s...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addClass(name string) uint16 {
	nameIdx := b.addUtf8(name)
	entry := []byte{classfile.TagClass}
	entry = appendU16(entry, nameIdx)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addString(s string) uint16 {
	strIdx := b.addUtf8(s)
	entry := []byte{classfile.TagString}
	entry = appendU16(entry, strIdx)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addNameAndType(name, desc string) uint16 {
	n := b.addUtf8(name)
	d := b.addUtf8(desc)
	entry := []byte{classfile.TagNameAndType}
	entry = appendU16(entry, n)
	entry = appendU16(entry, d)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addMethodref(className, name, desc string) uint16 {
	c := b.addClass(className)
	nat := b.addNameAndType(name, desc)
	entry := []byte{classfile.TagMethodref}
	entry = appendU16(entry, c)
	entry = appendU16(entry, nat)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addFieldref(className, name, desc string) uint16 {
	c := b.addClass(className)
	nat := b.addNameAndType(name, desc)
	entry := []byte{classfile.TagFieldref}
	entry = appendU16(entry, c)
	entry = appendU16(entry, nat)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// u16 splits a constant-pool index (or branch offset, already cast) into
// its two big-endian operand bytes, for inlining into hand-written code.
func u16(v uint16) (byte, byte) { return byte(v >> 8), byte(v) }

// builtField describes a field_info to embed, with no ConstantValue
// attribute (none of these tests need one).
type builtField struct {
	accessFlags uint16
	name, desc  string
}

// builtMethod describes a method_info to embed: native methods get zero
// attributes (no Code), matching what javac emits for a native method.
type builtMethod struct {
	accessFlags         uint16
	name, desc          string
	maxStack, maxLocals uint16
	code                []byte
	native              bool
}

// build assembles a full class-file byte stream for a class named
// className extending superName (pass "" for java/lang/Object itself),
// with the given fields and methods.
func (b *classBuilder) build(className, superName string, fields []builtField, methods []builtMethod) []byte {
	thisIdx := b.addClass(className)
	var superIdx uint16
	if superName != "" {
		superIdx = b.addClass(superName)
	}
	codeNameIdx := b.addUtf8("Code")

	var fieldBytes [][]byte
	for _, f := range fields {
		nameIdx := b.addUtf8(f.name)
		descIdx := b.addUtf8(f.desc)
		fb := make([]byte, 0, 8)
		fb = appendU16(fb, f.accessFlags)
		fb = appendU16(fb, nameIdx)
		fb = appendU16(fb, descIdx)
		fb = appendU16(fb, 0) // attributes_count
		fieldBytes = append(fieldBytes, fb)
	}

	var methodBytes [][]byte
	for _, m := range methods {
		nameIdx := b.addUtf8(m.name)
		descIdx := b.addUtf8(m.desc)
		mb := make([]byte, 0, 16)
		mb = appendU16(mb, m.accessFlags)
		mb = appendU16(mb, nameIdx)
		mb = appendU16(mb, descIdx)
		if m.native {
			mb = appendU16(mb, 0) // attributes_count: native methods carry no Code
		} else {
			codeAttr := make([]byte, 0, 12+len(m.code))
			codeAttr = appendU16(codeAttr, m.maxStack)
			codeAttr = appendU16(codeAttr, m.maxLocals)
			codeAttr = appendU32(codeAttr, uint32(len(m.code)))
			codeAttr = append(codeAttr, m.code...)
			codeAttr = appendU16(codeAttr, 0) // exception_table_length
			codeAttr = appendU16(codeAttr, 0) // attributes_count (nested)

			mb = appendU16(mb, 1) // attributes_count
			mb = appendU16(mb, codeNameIdx)
			mb = appendU32(mb, uint32(len(codeAttr)))
			mb = append(mb, codeAttr...)
		}
		methodBytes = append(methodBytes, mb)
	}

	out := make([]byte, 0, 1024)
	out = appendU32(out, classfile.Magic)
	out = appendU16(out, 0)  // minor
	out = appendU16(out, 52) // major

	out = appendU16(out, uint16(len(b.pool)))
	for i := 1; i < len(b.pool); i++ {
		out = append(out, b.pool[i]...)
	}

	out = appendU16(out, classfile.AccSuper|classfile.AccPublic)
	out = appendU16(out, thisIdx)
	out = appendU16(out, superIdx)
	out = appendU16(out, 0) // interfaces_count
	out = appendU16(out, uint16(len(fields)))
	for _, fb := range fieldBytes {
		out = append(out, fb...)
	}
	out = appendU16(out, uint16(len(methods)))
	for _, mb := range methodBytes {
		out = append(out, mb...)
	}
	out = appendU16(out, 0) // attributes_count
	return out
}

// memEntry is a classpath.Entry backed by an in-memory name->bytes map, for
// tests that need a real Loader driven through classfile.Parse rather than
// hand-built *rt.Class values.
type memEntry struct {
	classes map[string][]byte
}

func (m *memEntry) Open(name string) ([]byte, bool, error) {
	data, ok := m.classes[name]
	return data, ok, nil
}

func (m *memEntry) Close() error { return nil }

// bootstrapClassBytes builds the five classes every Execute() call now
// requires regardless of scenario: java/lang/Object (the implicit root,
// with the empty <init>()V that constructors chain to), java/lang/Class
// (Bootstrap's mirror target), java/lang/String (needs one instance field
// for its backing char[]), java/lang/System and sun/misc/VM (their native
// bodies are registered separately, e.g. by registerTestNatives; these
// class files only need to declare matching native methods for the
// trampoline to find).
func bootstrapClassBytes() map[string][]byte {
	object := newClassBuilder().build("java/lang/Object", "", nil, []builtMethod{
		{accessFlags: classfile.AccPublic, name: "<init>", desc: "()V", maxStack: 0, maxLocals: 1, code: []byte{OpReturn}},
	})

	str := newClassBuilder().build("java/lang/String", "java/lang/Object",
		[]builtField{{accessFlags: 0, name: "value", desc: "[C"}}, nil)

	class := newClassBuilder().build("java/lang/Class", "java/lang/Object", nil, nil)

	system := newClassBuilder().build("java/lang/System", "java/lang/Object", nil, []builtMethod{
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "<clinit>", desc: "()V", native: true},
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "print", desc: "(I)V", native: true},
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "println", desc: "(I)V", native: true},
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "print", desc: "(Ljava/lang/String;)V", native: true},
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "println", desc: "(Ljava/lang/String;)V", native: true},
	})

	vm := newClassBuilder().build("sun/misc/VM", "java/lang/Object", nil, []builtMethod{
		{accessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative, name: "initialize", desc: "()V", native: true},
	})

	return map[string][]byte{
		"java/lang/Object": object,
		"java/lang/String": str,
		"java/lang/Class":  class,
		"java/lang/System": system,
		"sun/misc/VM":      vm,
	}
}
