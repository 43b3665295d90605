package rt

import (
	"fmt"

	"github.com/rkoga/tinyjvm/pkg/classfile"
)

// Access flags, mirrored from classfile since the runtime class model checks
// them independently of the decoder (e.g. after synthesizing array/primitive
// classes that never went through classfile.Parse).
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccNative    = 0x0100
)

// Class is a runtime-resident, linked class: the classfile.ClassFile (decode
// result) plus everything the loader computed — dense field layouts, a
// stable id, resolved super/interface links, and the symbolic-reference
// cache keyed by constant-pool slot.
type Class struct {
	ID   int
	Name string

	CF          *classfile.ClassFile // nil for synthesized primitive/array classes
	AccessFlags uint16

	Super      *Class
	Interfaces []*Class

	Methods []*Method
	Fields  []*Field // declared on this class only

	StaticFields   []*Field // subset of Fields that are static, Index into StaticVars
	InstanceFields []*Field // dense layout: inherited prefix + own fields, Index into an object payload

	StaticVars []Value

	Initialized  bool
	Initializing bool

	Mirror *Object // java/lang/Class instance for this class

	// Array/primitive synthesis.
	IsArray        bool
	IsPrimitive    bool
	ArrayDim       int
	ElemClass      *Class // element class for array classes
	ElemDescriptor string // element field descriptor for array classes

	// symRefs is indexed directly by constant-pool slot, sized to
	// len(CF.ConstantPool) on first use, rather than a map: the length
	// invariant (sym_refs.length == constant_pool.length) is then a
	// property of the slice itself, not something callers can violate.
	symRefs []*ResolvedRef
}

// Method is a runtime method: descriptor already parsed (argument-slot
// count available without re-parsing), code and exception table copied from
// the Code attribute (or, for native methods, the synthetic trampoline body
// the loader injects).
type Method struct {
	Owner       *Class
	Name        string
	Descriptor  string
	AccessFlags uint16

	ArgSlots int // standard slot-weighted count (wide params count 2); sizes a native trampoline's locals
	ArgCount int // number of values to pop from the caller's operand stack / receive as locals
	MT       classfile.MethodType

	MaxLocals uint16
	MaxStack  uint16
	Code      []byte
	ExceptionTable []classfile.ExceptionHandler

	IsNative bool
}

func (m *Method) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// Field is a runtime field: either a static field (Index into
// Class.StaticVars) or an instance field (Index into an Object's payload).
type Field struct {
	Owner       *Class
	Name        string
	Descriptor  string
	AccessFlags uint16
	FT          classfile.FieldType
	Index       int
	IsStatic    bool

	HasConstantValue bool
	ConstantValueIdx uint16
}

func (f *Field) SlotKind() Kind { return fieldTypeKind(f.FT) }

func fieldTypeKind(ft classfile.FieldType) Kind {
	switch ft.Kind {
	case classfile.KindWide:
		if ft.Descriptor == "J" {
			return KindLong
		}
		return KindDouble
	case classfile.KindReference:
		return KindRef
	default:
		if ft.Descriptor == "F" {
			return KindFloat
		}
		return KindInt
	}
}

// lookupMethodInClass walks self -> super -> ... returning the first match.
func (c *Class) lookupMethodInClass(name, desc string) *Method {
	for cl := c; cl != nil; cl = cl.Super {
		for _, m := range cl.Methods {
			if m.Name == name && m.Descriptor == desc {
				return m
			}
		}
	}
	return nil
}

// lookupIfaceMethod tries own methods, then recursively all super-interfaces.
func (c *Class) lookupIfaceMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	for _, iface := range c.Interfaces {
		if m := iface.lookupIfaceMethod(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// LookupMethod does a class-chain search, then an interface search.
func (c *Class) LookupMethod(name, desc string) *Method {
	if m := c.lookupMethodInClass(name, desc); m != nil {
		return m
	}
	for cl := c; cl != nil; cl = cl.Super {
		for _, iface := range cl.Interfaces {
			if m := iface.lookupIfaceMethod(name, desc); m != nil {
				return m
			}
		}
	}
	return nil
}

// LookupField looks at own fields, then each interface (recursively), then
// the superclass.
func (c *Class) LookupField(name, desc string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.Descriptor == desc {
			return f
		}
	}
	for _, iface := range c.Interfaces {
		if f := iface.LookupField(name, desc); f != nil {
			return f
		}
	}
	if c.Super != nil {
		return c.Super.LookupField(name, desc)
	}
	return nil
}

// IsAssignable reports whether a reference of runtime class `from` may be
// assigned to a variable of static class c (c.is_assignable(from)).
func (c *Class) IsAssignable(from *Class) bool {
	if c == from {
		return true
	}
	if c.AccessFlags&AccInterface != 0 {
		return from.implementsInterface(c)
	}
	for cl := from.Super; cl != nil; cl = cl.Super {
		if cl == c {
			return true
		}
	}
	return false
}

func (c *Class) implementsInterface(iface *Class) bool {
	for cl := c; cl != nil; cl = cl.Super {
		for _, i := range cl.Interfaces {
			if i == iface || i.implementsInterface(iface) {
				return true
			}
		}
	}
	return false
}

// lookupOwnClinit returns this class's own <clinit>()V, if it declares one.
// Unlike LookupMethod this never walks the superclass chain: each class's
// static initializer runs exactly once, for itself.
func (c *Class) lookupOwnClinit() *Method {
	for _, m := range c.Methods {
		if m.Name == "<clinit>" && m.Descriptor == "()V" {
			return m
		}
	}
	return nil
}

// FindMainMethod returns the first method named "main" with descriptor
// ([Ljava/lang/String;)V and the static flag set.
func (c *Class) FindMainMethod() *Method {
	for _, m := range c.Methods {
		if m.Name == "main" && m.Descriptor == "([Ljava/lang/String;)V" && m.IsStatic() {
			return m
		}
	}
	return nil
}

func (c *Class) String() string {
	return fmt.Sprintf("class %s (id=%d)", c.Name, c.ID)
}
