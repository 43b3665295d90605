package rt

import (
	"testing"

	"github.com/rkoga/tinyjvm/pkg/classfile"
)

// newHeapTestLoader builds a Loader with java/lang/Object and the eight
// primitive classes installed directly (no classpath, no Bootstrap), the
// minimum a Heap method needs to synthesize array classes on demand.
func newHeapTestLoader(heap *Heap) *Loader {
	l := &Loader{Heap: heap, byName: make(map[string]*Class)}
	l.insert(&Class{Name: "java/lang/Object", AccessFlags: AccPublic, Initialized: true})
	for name, desc := range primitiveDescriptors {
		l.installPrimitive(name, desc)
	}
	return l
}

func TestNewPrimitiveArrayZeroFilled(t *testing.T) {
	heap := NewHeap()
	l := newHeapTestLoader(heap)

	arr, err := heap.NewPrimitiveArray(l, AtypeInt, 5)
	if err != nil {
		t.Fatalf("NewPrimitiveArray: %v", err)
	}
	if arr.Length() != 5 {
		t.Fatalf("Length() = %d, want 5", arr.Length())
	}
	if arr.Class.Name != "[I" {
		t.Fatalf("array class = %q, want [I", arr.Class.Name)
	}
	for i, v := range arr.Data {
		if v.Int() != 0 {
			t.Fatalf("Data[%d] = %d, want 0", i, v.Int())
		}
	}

	if _, err := heap.NewPrimitiveArray(l, AtypeInt, -1); err == nil {
		t.Fatalf("negative length should fail")
	}
}

// newHeapTestLoaderWithString is newHeapTestLoader plus a minimal
// java/lang/String (one instance field for the backing char[]), wired in
// the same way Loader.Bootstrap wires the real one.
func newHeapTestLoaderWithString(heap *Heap) *Loader {
	l := newHeapTestLoader(heap)
	valueField := &Field{
		Name:       "value",
		Descriptor: "[C",
		FT:         classfile.FieldType{Kind: classfile.KindReference, Descriptor: "[C", ArrayDims: 1, ElemDescriptor: "C"},
		Index:      0,
	}
	strClass := &Class{Name: "java/lang/String", Super: l.byName["java/lang/Object"], Initialized: true}
	valueField.Owner = strClass
	strClass.Fields = []*Field{valueField}
	strClass.InstanceFields = []*Field{valueField}
	l.insert(strClass)
	l.stringClass = strClass
	return l
}

func TestNewJStringInternsByValue(t *testing.T) {
	heap := NewHeap()
	l := newHeapTestLoaderWithString(heap)

	a := heap.NewJString(l, "hello")
	b := heap.NewJString(l, "hello")
	if a != b {
		t.Fatalf("NewJString(\"hello\") twice returned different objects: %p != %p", a, b)
	}

	c := heap.NewJString(l, "world")
	if a == c {
		t.Fatalf("NewJString of distinct strings returned the same object")
	}

	arr, ok := a.GetField(0).Ref.(*Array)
	if !ok {
		t.Fatalf("interned string's field 0 is not a char array: %T", a.GetField(0).Ref)
	}
	if arr.Length() != 5 {
		t.Fatalf("backing char[] length = %d, want 5", arr.Length())
	}
	if arr.Data[0].Int() != 'h' {
		t.Fatalf("backing char[0] = %d, want 'h'", arr.Data[0].Int())
	}
}

func TestNewJStringWithoutStringClassFallsBack(t *testing.T) {
	heap := NewHeap()
	l := newHeapTestLoader(heap) // no stringClass set

	obj := heap.NewJString(l, "x")
	if obj == nil {
		t.Fatalf("NewJString returned nil without a String class")
	}
	if len(obj.Payload) != 0 {
		t.Fatalf("placeholder string object should carry no payload, got %v", obj.Payload)
	}
}

func TestNewMultiDimShape(t *testing.T) {
	heap := NewHeap()
	l := newHeapTestLoader(heap)

	arrClass, err := l.Load("[[I")
	if err != nil {
		t.Fatalf("Load([[I): %v", err)
	}
	outer, err := heap.NewMultiDim(l, arrClass, []int32{2, 3})
	if err != nil {
		t.Fatalf("NewMultiDim: %v", err)
	}
	if outer.Length() != 2 {
		t.Fatalf("outer length = %d, want 2", outer.Length())
	}
	for i, v := range outer.Data {
		inner, ok := v.Ref.(*Array)
		if !ok {
			t.Fatalf("outer[%d] is not an array: %T", i, v.Ref)
		}
		if inner.Length() != 3 {
			t.Fatalf("inner[%d] length = %d, want 3", i, inner.Length())
		}
		if inner.AType != AtypeInt {
			t.Fatalf("inner[%d] AType = %d, want AtypeInt", i, inner.AType)
		}
		for j, e := range inner.Data {
			if e.Int() != 0 {
				t.Fatalf("inner[%d][%d] = %d, want 0", i, j, e.Int())
			}
		}
	}

	if _, err := heap.NewMultiDim(l, arrClass, []int32{-1, 3}); err == nil {
		t.Fatalf("negative outer dimension should fail")
	}
}
