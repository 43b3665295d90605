package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags (spec.md §6).
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref           = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagInvokeDynamic      = 18
)

// Entry is implemented by every constant pool variant. A nil Entry at index i
// of a Pool means index i is either the reserved blank slot 0 or the blank
// second slot of a preceding Long/Double entry.
type Entry interface {
	Tag() uint8
}

type Utf8 struct{ Value string }

func (Utf8) Tag() uint8 { return TagUtf8 }

type Integer struct{ Value int32 }

func (Integer) Tag() uint8 { return TagInteger }

type Float struct{ Value float32 }

func (Float) Tag() uint8 { return TagFloat }

type Long struct{ Value int64 }

func (Long) Tag() uint8 { return TagLong }

type Double struct{ Value float64 }

func (Double) Tag() uint8 { return TagDouble }

// Class refers, by name, to a class or interface. NameIndex points at a Utf8
// holding the internal name (e.g. "java/lang/Object" or "[I").
type Class struct{ NameIndex uint16 }

func (Class) Tag() uint8 { return TagClass }

type String struct{ StringIndex uint16 }

func (String) Tag() uint8 { return TagString }

type Fieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (Fieldref) Tag() uint8 { return TagFieldref }

type Methodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (Methodref) Tag() uint8 { return TagMethodref }

type InterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (InterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type NameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (NameAndType) Tag() uint8 { return TagNameAndType }

// MethodHandle carries the reference_kind byte plus the index it points at
// (a Fieldref/Methodref/InterfaceMethodref depending on kind).
type MethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (MethodHandle) Tag() uint8 { return TagMethodHandle }

type MethodTypeEntry struct{ DescriptorIndex uint16 }

func (MethodTypeEntry) Tag() uint8 { return TagMethodType }

type InvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (InvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

// Pool is a 1-based indexed constant pool: Pool[0] and the second slot of
// every Long/Double entry are nil (spec.md §3's wide-slot invariant).
type Pool []Entry

func parsePool(r *Reader, count uint16) (Pool, error) {
	pool := make(Pool, count)
	for i := uint16(1); i < count; i++ {
		tag, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("reading tag at index %d: %w", i, err)
		}
		switch tag {
		case TagUtf8:
			length, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("reading Utf8 length at %d: %w", i, err)
			}
			raw, err := r.Bytes(int(length))
			if err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at %d: %w", i, err)
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding Utf8 at %d: %w", i, err)
			}
			pool[i] = Utf8{Value: s}

		case TagInteger:
			v, err := r.U32()
			if err != nil {
				return nil, fmt.Errorf("reading Integer at %d: %w", i, err)
			}
			pool[i] = Integer{Value: int32(v)}

		case TagFloat:
			v, err := r.U32()
			if err != nil {
				return nil, fmt.Errorf("reading Float at %d: %w", i, err)
			}
			pool[i] = Float{Value: math.Float32frombits(v)}

		case TagLong:
			v, err := r.U64()
			if err != nil {
				return nil, fmt.Errorf("reading Long at %d: %w", i, err)
			}
			pool[i] = Long{Value: int64(v)}
			i++ // occupies the next slot too

		case TagDouble:
			v, err := r.U64()
			if err != nil {
				return nil, fmt.Errorf("reading Double at %d: %w", i, err)
			}
			pool[i] = Double{Value: math.Float64frombits(v)}
			i++

		case TagClass:
			v, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("reading Class at %d: %w", i, err)
			}
			pool[i] = Class{NameIndex: v}

		case TagString:
			v, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("reading String at %d: %w", i, err)
			}
			pool[i] = String{StringIndex: v}

		case TagFieldref:
			c, n, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading Fieldref at %d: %w", i, err)
			}
			pool[i] = Fieldref{ClassIndex: c, NameAndTypeIndex: n}

		case TagMethodref:
			c, n, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading Methodref at %d: %w", i, err)
			}
			pool[i] = Methodref{ClassIndex: c, NameAndTypeIndex: n}

		case TagInterfaceMethodref:
			c, n, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref at %d: %w", i, err)
			}
			pool[i] = InterfaceMethodref{ClassIndex: c, NameAndTypeIndex: n}

		case TagNameAndType:
			n, d, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading NameAndType at %d: %w", i, err)
			}
			pool[i] = NameAndType{NameIndex: n, DescriptorIndex: d}

		case TagMethodHandle:
			kind, err := r.U8()
			if err != nil {
				return nil, fmt.Errorf("reading MethodHandle kind at %d: %w", i, err)
			}
			idx, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("reading MethodHandle index at %d: %w", i, err)
			}
			pool[i] = MethodHandle{ReferenceKind: kind, ReferenceIndex: idx}

		case TagMethodType:
			d, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("reading MethodType at %d: %w", i, err)
			}
			pool[i] = MethodTypeEntry{DescriptorIndex: d}

		case TagInvokeDynamic:
			b, n, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading InvokeDynamic at %d: %w", i, err)
			}
			pool[i] = InvokeDynamic{BootstrapMethodAttrIndex: b, NameAndTypeIndex: n}

		default:
			return nil, fmt.Errorf("classfile: unknown constant pool tag %d at index %d", tag, i)
		}
	}
	return pool, nil
}

func readRefPair(r *Reader) (uint16, uint16, error) {
	a, err := r.U16()
	if err != nil {
		return 0, 0, err
	}
	b, err := r.U16()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (p Pool) at(i uint16) (Entry, error) {
	if i == 0 || int(i) >= len(p) || p[i] == nil {
		return nil, fmt.Errorf("classfile: invalid constant pool index %d", i)
	}
	return p[i], nil
}

// Utf8At fetches a UTF-8 entry by index.
func (p Pool) Utf8At(i uint16) (string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", err
	}
	u, ok := e.(Utf8)
	if !ok {
		return "", fmt.Errorf("classfile: index %d is not Utf8 (tag=%d)", i, e.Tag())
	}
	return u.Value, nil
}

// ClassNameAt dereferences a CONSTANT_Class entry to its internal name.
func (p Pool) ClassNameAt(i uint16) (string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", err
	}
	c, ok := e.(Class)
	if !ok {
		return "", fmt.Errorf("classfile: index %d is not Class (tag=%d)", i, e.Tag())
	}
	return p.Utf8At(c.NameIndex)
}

// StringAt dereferences a CONSTANT_String entry to its UTF-8 value.
func (p Pool) StringAt(i uint16) (string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", err
	}
	s, ok := e.(String)
	if !ok {
		return "", fmt.Errorf("classfile: index %d is not String (tag=%d)", i, e.Tag())
	}
	return p.Utf8At(s.StringIndex)
}

// U32At fetches an Integer or Float entry's raw 32 bits.
func (p Pool) U32At(i uint16) (uint32, error) {
	e, err := p.at(i)
	if err != nil {
		return 0, err
	}
	switch v := e.(type) {
	case Integer:
		return uint32(v.Value), nil
	case Float:
		return math.Float32bits(v.Value), nil
	default:
		return 0, fmt.Errorf("classfile: index %d is not Integer/Float (tag=%d)", i, e.Tag())
	}
}

// U64At fetches a Long or Double entry's raw 64 bits.
func (p Pool) U64At(i uint16) (uint64, error) {
	e, err := p.at(i)
	if err != nil {
		return 0, err
	}
	switch v := e.(type) {
	case Long:
		return uint64(v.Value), nil
	case Double:
		return math.Float64bits(v.Value), nil
	default:
		return 0, fmt.Errorf("classfile: index %d is not Long/Double (tag=%d)", i, e.Tag())
	}
}

// F32At fetches a Float entry's value.
func (p Pool) F32At(i uint16) (float32, error) {
	e, err := p.at(i)
	if err != nil {
		return 0, err
	}
	f, ok := e.(Float)
	if !ok {
		return 0, fmt.Errorf("classfile: index %d is not Float (tag=%d)", i, e.Tag())
	}
	return f.Value, nil
}

// F64At fetches a Double entry's value.
func (p Pool) F64At(i uint16) (float64, error) {
	e, err := p.at(i)
	if err != nil {
		return 0, err
	}
	d, ok := e.(Double)
	if !ok {
		return 0, fmt.Errorf("classfile: index %d is not Double (tag=%d)", i, e.Tag())
	}
	return d.Value, nil
}

// MemberRef is the resolved (class_name, name, descriptor) triple a
// Fieldref/Methodref/InterfaceMethodref dereferences to.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (p Pool) resolveNameAndType(i uint16) (string, string, error) {
	e, err := p.at(i)
	if err != nil {
		return "", "", err
	}
	nat, ok := e.(NameAndType)
	if !ok {
		return "", "", fmt.Errorf("classfile: index %d is not NameAndType (tag=%d)", i, e.Tag())
	}
	name, err := p.Utf8At(nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := p.Utf8At(nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, desc, nil
}

// FieldRefAt resolves a CONSTANT_Fieldref entry.
func (p Pool) FieldRefAt(i uint16) (MemberRef, error) {
	e, err := p.at(i)
	if err != nil {
		return MemberRef{}, err
	}
	f, ok := e.(Fieldref)
	if !ok {
		return MemberRef{}, fmt.Errorf("classfile: index %d is not Fieldref (tag=%d)", i, e.Tag())
	}
	return p.resolveMemberRef(f.ClassIndex, f.NameAndTypeIndex)
}

// MethodRefAt resolves a CONSTANT_Methodref entry.
func (p Pool) MethodRefAt(i uint16) (MemberRef, error) {
	e, err := p.at(i)
	if err != nil {
		return MemberRef{}, err
	}
	m, ok := e.(Methodref)
	if !ok {
		return MemberRef{}, fmt.Errorf("classfile: index %d is not Methodref (tag=%d)", i, e.Tag())
	}
	return p.resolveMemberRef(m.ClassIndex, m.NameAndTypeIndex)
}

// InterfaceMethodRefAt resolves a CONSTANT_InterfaceMethodref entry.
func (p Pool) InterfaceMethodRefAt(i uint16) (MemberRef, error) {
	e, err := p.at(i)
	if err != nil {
		return MemberRef{}, err
	}
	m, ok := e.(InterfaceMethodref)
	if !ok {
		return MemberRef{}, fmt.Errorf("classfile: index %d is not InterfaceMethodref (tag=%d)", i, e.Tag())
	}
	return p.resolveMemberRef(m.ClassIndex, m.NameAndTypeIndex)
}

func (p Pool) resolveMemberRef(classIdx, natIdx uint16) (MemberRef, error) {
	className, err := p.ClassNameAt(classIdx)
	if err != nil {
		return MemberRef{}, fmt.Errorf("resolving owning class: %w", err)
	}
	name, desc, err := p.resolveNameAndType(natIdx)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{ClassName: className, Name: name, Descriptor: desc}, nil
}

// ConstantKind tags the value-level view Constant returns for ldc/ldc_w/ldc2_w.
type ConstantKind int

const (
	ConstPrimitive ConstantKind = iota
	ConstClassRef
	ConstString
)

// Constant is the ldc-family view of a constant pool entry: either a
// primitive's raw bits (with a wide flag for long/double), a class
// reference by name, or a string's UTF-8 value.
type Constant struct {
	Kind      ConstantKind
	Bits      uint64
	Wide      bool
	ClassName string
	Str       string
}

// ConstantAt returns the ldc/ldc_w/ldc2_w value-level view of entry i.
func (p Pool) ConstantAt(i uint16) (Constant, error) {
	e, err := p.at(i)
	if err != nil {
		return Constant{}, err
	}
	switch v := e.(type) {
	case Integer:
		return Constant{Kind: ConstPrimitive, Bits: uint64(uint32(v.Value))}, nil
	case Float:
		return Constant{Kind: ConstPrimitive, Bits: uint64(math.Float32bits(v.Value))}, nil
	case Long:
		return Constant{Kind: ConstPrimitive, Bits: uint64(v.Value), Wide: true}, nil
	case Double:
		return Constant{Kind: ConstPrimitive, Bits: math.Float64bits(v.Value), Wide: true}, nil
	case Class:
		name, err := p.Utf8At(v.NameIndex)
		if err != nil {
			return Constant{}, fmt.Errorf("resolving class constant: %w", err)
		}
		return Constant{Kind: ConstClassRef, ClassName: name}, nil
	case String:
		s, err := p.Utf8At(v.StringIndex)
		if err != nil {
			return Constant{}, fmt.Errorf("resolving string constant: %w", err)
		}
		return Constant{Kind: ConstString, Str: s}, nil
	default:
		return Constant{}, fmt.Errorf("classfile: invalid index %d for ldc (tag=%d)", i, e.Tag())
	}
}
