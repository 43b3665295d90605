package rt

import (
	"fmt"
	"unicode/utf16"
)

// Heap is the bump allocator: objects and arrays are allocated and never
// freed (spec.md §9's "no reclamation" design note). It also owns the
// interned-string pool, keyed by Go string value, append-only.
type Heap struct {
	strings map[string]*Object
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{strings: make(map[string]*Object)}
}

// NewObject allocates an instance of class with one payload slot per
// instance field.
func (h *Heap) NewObject(class *Class) *Object {
	return h.NewObjectSize(class, 0)
}

// NewObjectSize allocates an instance with extra slots beyond the declared
// instance fields, used by Class/Field mirrors to carry a host-side pointer
// alongside their Java-visible fields.
func (h *Heap) NewObjectSize(class *Class, extra int) *Object {
	n := len(class.InstanceFields) + extra
	payload := make([]Value, n)
	for i, f := range class.InstanceFields {
		payload[i] = ZeroOf(f.SlotKind())
	}
	for i := len(class.InstanceFields); i < n; i++ {
		payload[i] = NullVal()
	}
	return &Object{Class: class, Payload: payload}
}

func atypeKind(atype byte) (Kind, error) {
	switch atype {
	case AtypeBoolean, AtypeByte, AtypeChar, AtypeShort, AtypeInt:
		return KindInt, nil
	case AtypeLong:
		return KindLong, nil
	case AtypeFloat:
		return KindFloat, nil
	case AtypeDouble:
		return KindDouble, nil
	default:
		return 0, fmt.Errorf("rt: unknown atype %d", atype)
	}
}

func atypeName(atype byte) string {
	switch atype {
	case AtypeBoolean:
		return "boolean"
	case AtypeByte:
		return "byte"
	case AtypeChar:
		return "char"
	case AtypeShort:
		return "short"
	case AtypeInt:
		return "int"
	case AtypeLong:
		return "long"
	case AtypeFloat:
		return "float"
	case AtypeDouble:
		return "double"
	default:
		return ""
	}
}

// NewPrimitiveArray allocates a typed array of the given JVM newarray atype
// and length, zero-filled.
func (h *Heap) NewPrimitiveArray(l *Loader, atype byte, length int32) (*Array, error) {
	if length < 0 {
		return nil, fmt.Errorf("java.lang.NegativeArraySizeException: %d", length)
	}
	kind, err := atypeKind(atype)
	if err != nil {
		return nil, err
	}
	desc := primitiveDescriptors[atypeName(atype)]
	arrClass, err := l.Load("[" + desc)
	if err != nil {
		return nil, err
	}
	data := make([]Value, length)
	for i := range data {
		data[i] = ZeroOf(kind)
	}
	return &Array{Class: arrClass, AType: atype, Elem: kind, Data: data}, nil
}

// NewArray allocates an array whose element is named by elementName: a
// primitive type name delegates to NewPrimitiveArray, otherwise the
// element's "[L...;" or "[[..." array class is loaded/constructed and the
// array holds object references.
func (h *Heap) NewArray(l *Loader, elementName string, length int32) (*Array, error) {
	if desc, ok := primitiveDescriptors[elementName]; ok {
		return h.NewPrimitiveArray(l, primitiveDescToAtype(desc), length)
	}
	if length < 0 {
		return nil, fmt.Errorf("java.lang.NegativeArraySizeException: %d", length)
	}
	var className string
	if len(elementName) > 0 && elementName[0] == '[' {
		className = "[" + elementName
	} else {
		className = "[L" + elementName + ";"
	}
	arrClass, err := l.Load(className)
	if err != nil {
		return nil, err
	}
	data := make([]Value, length)
	for i := range data {
		data[i] = NullVal()
	}
	return &Array{Class: arrClass, Elem: KindRef, Data: data}, nil
}

func primitiveDescToAtype(desc string) byte {
	switch desc {
	case "Z":
		return AtypeBoolean
	case "B":
		return AtypeByte
	case "C":
		return AtypeChar
	case "S":
		return AtypeShort
	case "I":
		return AtypeInt
	case "J":
		return AtypeLong
	case "F":
		return AtypeFloat
	case "D":
		return AtypeDouble
	}
	return 0
}

// NewMultiDim recursively allocates a multi-dimensional array: the
// innermost dimension is primitive if the element class is primitive, else
// a reference array.
func (h *Heap) NewMultiDim(l *Loader, arrayClass *Class, dims []int32) (*Array, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("rt: NewMultiDim called with no dimensions")
	}
	n := dims[0]
	if n < 0 {
		return nil, fmt.Errorf("java.lang.NegativeArraySizeException: %d", n)
	}
	if len(dims) == 1 {
		if arrayClass.ElemClass != nil && arrayClass.ElemClass.IsPrimitive {
			atype := primitiveDescToAtype(primitiveDescriptors[arrayClass.ElemClass.Name])
			return h.NewPrimitiveArray(l, atype, n)
		}
		return h.NewArray(l, stripOneDim(arrayClass.Name), n)
	}
	data := make([]Value, n)
	innerClassName := arrayClass.Name[1:]
	innerClass, err := l.Load(innerClassName)
	if err != nil {
		return nil, err
	}
	for i := range data {
		inner, err := h.NewMultiDim(l, innerClass, dims[1:])
		if err != nil {
			return nil, err
		}
		data[i] = RefVal(inner)
	}
	return &Array{Class: arrayClass, Elem: KindRef, Data: data}, nil
}

// stripOneDim removes one array dimension from arrName: "[I" becomes "I",
// "[Ljava/lang/Object;" becomes "java/lang/Object", and "[[I" becomes
// "[I".
func stripOneDim(arrName string) string {
	inner := arrName[1:]
	if len(inner) > 0 && inner[0] == 'L' {
		return inner[1 : len(inner)-1]
	}
	return inner
}

// NewJString returns the interned mirror for s, allocating and inserting it
// on first sight so later calls with an equal s return the identical
// object.
func (h *Heap) NewJString(l *Loader, s string) *Object {
	if obj, ok := h.strings[s]; ok {
		return obj
	}
	strClass := l.StringClass()
	var obj *Object
	if strClass != nil {
		obj = h.NewObject(strClass)
		units := utf16.Encode([]rune(s))
		chars := make([]Value, len(units))
		for i, u := range units {
			chars[i] = IntVal(int32(u))
		}
		charArrClass, _ := l.Load("[C")
		charArr := &Array{Class: charArrClass, AType: AtypeChar, Elem: KindInt, Data: chars}
		if len(strClass.InstanceFields) > 0 {
			obj.SetField(0, RefVal(charArr))
		}
	} else {
		// Bootstrap ordering corner: interning happens before
		// java/lang/String finishes loading (e.g. seeding a ConstantValue
		// on String's own static fields). Fall back to a bare payload-less
		// placeholder. It stays interned under s, so later calls with an
		// equal s return this same placeholder.
		obj = &Object{}
	}
	h.strings[s] = obj
	return obj
}

// newClassMirror allocates the java/lang/Class instance representing c,
// with one extra slot holding c itself so native methods can recover the
// runtime class from a Class mirror. Before java/lang/Class itself has
// finished loading there is nothing to instantiate; the loader retroactively
// assigns mirrors to every such class once bootstrap completes.
func (h *Heap) newClassMirror(l *Loader, c *Class) *Object {
	if l.classClass == nil {
		return nil
	}
	obj := h.NewObjectSize(l.classClass, 1)
	obj.Payload[len(obj.Payload)-1] = RefVal(c)
	return obj
}
